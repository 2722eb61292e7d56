package models

// CheckoutItem is one client-proposed cart line. The unit price is accepted
// for parity with the storefront payload but the stored snapshot always
// comes from the catalog.
type CheckoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type CheckoutCustomer struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	ShippingAddress string `json:"shippingAddress"`
	ShippingCommune string `json:"shippingCommune"`
	Notes           string `json:"notes,omitempty"`
}

type CheckoutRequest struct {
	Items    []CheckoutItem   `json:"items"`
	Customer CheckoutCustomer `json:"customer"`
}

// PaymentPending is set when the order was persisted but the payment intent
// could not be created; the client may retry via the payment endpoint.
type CheckoutResponse struct {
	OrderNumber    string `json:"orderNumber"`
	PreferenceID   string `json:"preferenceId,omitempty"`
	InitPoint      string `json:"initPoint,omitempty"`
	PaymentPending bool   `json:"paymentPending,omitempty"`
}
