package models

import (
	"time"
)

type OrderStatus string

// Fulfillment states. PREPARING and DELIVERED are set by the admin only,
// reconciliation never produces them.
const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known fulfillment states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// Order keeps all monetary fields in minor currency units (CLP cents).
// Total is fixed at creation time, it is never recomputed afterwards.
type Order struct {
	ID                string        `json:"id"`
	OrderNumber       string        `json:"orderNumber"`
	CustomerName      string        `json:"customerName"`
	CustomerEmail     string        `json:"customerEmail"`
	CustomerPhone     string        `json:"customerPhone"`
	ShippingAddress   string        `json:"shippingAddress"`
	ShippingCommune   string        `json:"shippingCommune"`
	Subtotal          int64         `json:"subtotal"`
	ShippingCost      int64         `json:"shippingCost"`
	Total             int64         `json:"total"`
	Notes             string        `json:"notes,omitempty"`
	Status            OrderStatus   `json:"status"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	MercadoPagoID     string        `json:"mercadoPagoId,omitempty"`
	MercadoPagoStatus string        `json:"mercadoPagoStatus,omitempty"`
	InitPoint         string        `json:"-"`
	Items             []OrderItem   `json:"items"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// OrderItem snapshots the product name and unit price at purchase time.
type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Total       int64  `json:"total"`
}
