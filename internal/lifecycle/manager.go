package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcalor/sabor-emilia/config"
	"github.com/mcalor/sabor-emilia/internal/db"
	"github.com/mcalor/sabor-emilia/internal/mercadopago"
	"github.com/mcalor/sabor-emilia/internal/notify"
	"github.com/mcalor/sabor-emilia/models"
)

// Store is the slice of the order store the lifecycle manager needs.
type Store interface {
	CreateOrderWithItems(order *models.Order) error
	GetOrderByID(id string) (*models.Order, error)
	GetOrderByNumber(number string) (*models.Order, error)
	AttachPaymentIntent(orderID, preferenceID, initPoint string) (bool, error)
	UpdateOrderStatusIfCurrent(orderID string, expected, next models.OrderStatus, payment models.PaymentStatus, rawStatus string) (bool, error)
	InsertNotificationIfAbsent(paymentID, action, payload string) (bool, string, error)
	MarkNotificationApplied(paymentID string) error
	GetProductsByIDs(ids []string) (map[string]models.Product, error)
}

type Gateway interface {
	CreatePreference(ctx context.Context, pref *mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	FetchPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Manager owns the order state machine: it creates orders, attaches payment
// intents and reconciles asynchronous gateway notifications.
type Manager struct {
	Store   Store
	Gateway Gateway
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Events  chan<- notify.StatusChange
}

func NewManager(store Store, gateway Gateway, cfg *config.Config, logger *zap.SugaredLogger, events chan<- notify.StatusChange) *Manager {
	return &Manager{
		Store:   store,
		Gateway: gateway,
		Config:  cfg,
		Logger:  logger,
		Events:  events,
	}
}

const orderNumberAttempts = 3

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateOrder validates the submitted cart, re-prices it from the catalog,
// persists order and items atomically and then tries to attach a payment
// intent. A gateway failure does not roll the order back: the response
// carries PaymentPending and the intent can be attached later.
func (m *Manager) CreateOrder(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	items, subtotal, err := m.priceItems(req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		CustomerName:    strings.TrimSpace(req.Customer.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.Customer.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.Customer.CustomerPhone),
		ShippingAddress: strings.TrimSpace(req.Customer.ShippingAddress),
		ShippingCommune: strings.TrimSpace(req.Customer.ShippingCommune),
		Subtotal:        subtotal,
		ShippingCost:    m.Config.ShippingCost,
		Total:           subtotal + m.Config.ShippingCost,
		Notes:           strings.TrimSpace(req.Customer.Notes),
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		Items:           items,
	}

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber()
		err = m.Store.CreateOrderWithItems(order)
		if err == nil {
			break
		}
		if !errors.Is(err, db.ErrDuplicateOrderNumber) {
			return nil, fmt.Errorf("failed to persist order: %w", err)
		}
		m.Logger.Warnw("order number collision, regenerating", "orderNumber", order.OrderNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not allocate a unique order number", ErrConflict)
	}

	resp := &models.CheckoutResponse{OrderNumber: order.OrderNumber}

	pref, err := m.attachPayment(ctx, order)
	if err != nil {
		m.Logger.Warnw("payment intent creation failed, order kept pending",
			"orderNumber", order.OrderNumber, "error", err)
		resp.PaymentPending = true
		return resp, nil
	}

	resp.PreferenceID = pref.ID
	resp.InitPoint = pref.RedirectURL()

	return resp, nil
}

// RetryPayment re-runs the payment-intent step for an order that was
// persisted without one. Idempotent: an already attached intent is simply
// returned.
func (m *Manager) RetryPayment(ctx context.Context, orderNumber string) (*models.CheckoutResponse, error) {
	order, err := m.Store.GetOrderByNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
	}

	resp := &models.CheckoutResponse{OrderNumber: order.OrderNumber}

	if order.MercadoPagoID != "" {
		resp.PreferenceID = order.MercadoPagoID
		resp.InitPoint = order.InitPoint
		return resp, nil
	}

	pref, err := m.attachPayment(ctx, order)
	if err != nil {
		return nil, err
	}

	resp.PreferenceID = pref.ID
	resp.InitPoint = pref.RedirectURL()

	return resp, nil
}

func (m *Manager) attachPayment(ctx context.Context, order *models.Order) (*mercadopago.Preference, error) {
	prefItems := make([]mercadopago.PreferenceItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			Title:     item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if order.ShippingCost > 0 {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			Title:     "Envío",
			Quantity:  1,
			UnitPrice: order.ShippingCost,
		})
	}

	pref, err := m.Gateway.CreatePreference(ctx, &mercadopago.PreferenceRequest{
		Items: prefItems,
		Payer: mercadopago.PreferencePayer{Email: order.CustomerEmail},
		BackURLs: mercadopago.PreferenceBackURLs{
			Success: fmt.Sprintf("%s/payment/success?order=%s", m.Config.BaseURL, order.OrderNumber),
			Failure: fmt.Sprintf("%s/payment/failure?order=%s", m.Config.BaseURL, order.OrderNumber),
			Pending: fmt.Sprintf("%s/payment/pending?order=%s", m.Config.BaseURL, order.OrderNumber),
		},
		AutoReturn:        "approved",
		ExternalReference: order.ID,
	})
	if err != nil {
		return nil, err
	}

	attached, err := m.Store.AttachPaymentIntent(order.ID, pref.ID, pref.RedirectURL())
	if err != nil {
		return nil, err
	}
	if !attached {
		// another intent won the race, keep the stored one
		current, err := m.Store.GetOrderByID(order.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.MercadoPagoID != "" {
			return &mercadopago.Preference{ID: current.MercadoPagoID, InitPoint: current.InitPoint}, nil
		}
	}

	return pref, nil
}

// Outcome of one webhook delivery.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeNoChange       Outcome = "no_change"
)

// Reconcile processes one verified webhook delivery. The notification
// record keyed by the gateway payment id makes the transition idempotent:
// once a delivery has been applied, replays short-circuit before touching
// the order. The payment status is always fetched from the gateway, the
// webhook body is never trusted for it.
func (m *Manager) Reconcile(ctx context.Context, paymentID, action string, payload []byte) (Outcome, error) {
	inserted, prior, err := m.Store.InsertNotificationIfAbsent(paymentID, action, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to record notification: %w", err)
	}
	if !inserted && prior == models.NotificationApplied {
		m.Logger.Infow("duplicate payment notification, already applied", "paymentId", paymentID)
		return OutcomeAlreadyApplied, nil
	}

	// the client retries transient failures internally; when it gives up
	// the record stays "received" so the gateway's redelivery retries us
	payment, err := m.Gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	if payment.ExternalReference == "" {
		return "", fmt.Errorf("%w: payment %s carries no external reference", ErrOrderNotFound, paymentID)
	}

	order, err := m.Store.GetOrderByID(payment.ExternalReference)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", fmt.Errorf("%w: no order for external reference %s", ErrOrderNotFound, payment.ExternalReference)
	}

	next, changed := NextState(order.Status, payment.Status)
	if !changed {
		if Terminal(order.Status) {
			if err = m.Store.MarkNotificationApplied(paymentID); err != nil {
				return "", err
			}
			m.Logger.Infow("ignoring gateway status for settled order",
				"orderNumber", order.OrderNumber, "status", order.Status, "gatewayStatus", payment.Status)
			return OutcomeNoChange, nil
		}
		// order and payment both still pending, keep the record retryable
		m.Logger.Infow("payment still pending", "orderNumber", order.OrderNumber, "paymentId", paymentID)
		return OutcomeNoChange, nil
	}

	applied, err := m.Store.UpdateOrderStatusIfCurrent(order.ID, models.OrderPending, next.Status, next.Payment, payment.Status)
	if err != nil {
		return "", err
	}

	if err = m.Store.MarkNotificationApplied(paymentID); err != nil {
		return "", err
	}

	if !applied {
		m.Logger.Infow("order already moved by a concurrent delivery",
			"orderNumber", order.OrderNumber, "paymentId", paymentID)
		return OutcomeNoChange, nil
	}

	m.Logger.Infow("order status applied", "orderNumber", order.OrderNumber,
		"status", next.Status, "paymentStatus", next.Payment)
	m.notifyStatusChange(order, next)

	return OutcomeApplied, nil
}

func (m *Manager) notifyStatusChange(order *models.Order, next Transition) {
	if m.Events == nil {
		return
	}

	ev := notify.StatusChange{
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        next.Status,
		Payment:       next.Payment,
		Total:         order.Total,
	}

	select {
	case m.Events <- ev:
	default:
		m.Logger.Warnw("notification queue full, dropping event", "orderNumber", order.OrderNumber)
	}
}

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

func validateCheckout(req *models.CheckoutRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	for _, item := range req.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: cart item without product id", ErrValidation)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
	}

	customer := req.Customer
	required := map[string]string{
		"customerName":    customer.CustomerName,
		"customerEmail":   customer.CustomerEmail,
		"customerPhone":   customer.CustomerPhone,
		"shippingAddress": customer.ShippingAddress,
		"shippingCommune": customer.ShippingCommune,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}

	if !emailPattern.MatchString(strings.TrimSpace(customer.CustomerEmail)) {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}

	return nil
}

// priceItems resolves every cart line against the live catalog. Client
// prices are ignored: the snapshot comes from the product table, so a
// tampered payload can not change what is charged.
func (m *Manager) priceItems(items []models.CheckoutItem) ([]models.OrderItem, int64, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := m.Store.GetProductsByIDs(ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load products: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown product %s", ErrValidation, item.ProductID)
		}
		if !product.Available {
			return nil, 0, fmt.Errorf("%w: product %s is not available", ErrValidation, product.Name)
		}

		lineTotal := product.Price * int64(item.Quantity)
		orderItems = append(orderItems, models.OrderItem{
			ID:          uuid.New().String(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			Total:       lineTotal,
		})
		subtotal += lineTotal
	}

	return orderItems, subtotal, nil
}
