package models

import "time"

// WebhookPayload is the body MercadoPago pushes on payment events.
type WebhookPayload struct {
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

const (
	WebhookActionPaymentCreated = "payment.created"
	WebhookActionPaymentUpdated = "payment.updated"
)

// Notification outcomes. A record stays "received" until a terminal
// transition has been applied for its payment id.
const (
	NotificationReceived = "received"
	NotificationApplied  = "applied"
)

// PaymentNotification is one recorded webhook delivery, keyed by the
// gateway payment id for deduplication.
type PaymentNotification struct {
	PaymentID  string    `json:"paymentId"`
	Action     string    `json:"action"`
	Payload    string    `json:"payload"`
	Outcome    string    `json:"outcome"`
	ReceivedAt time.Time `json:"receivedAt"`
}
