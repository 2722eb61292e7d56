package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcalor/sabor-emilia/config"
	"github.com/mcalor/sabor-emilia/internal/db"
	"github.com/mcalor/sabor-emilia/internal/mercadopago"
	"github.com/mcalor/sabor-emilia/logging"
	"github.com/mcalor/sabor-emilia/models"
)

type fakeStore struct {
	orders        map[string]*models.Order
	products      map[string]models.Product
	notifications map[string]string

	createCalls    int
	duplicatesLeft int
	updateCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:        make(map[string]*models.Order),
		products:      make(map[string]models.Product),
		notifications: make(map[string]string),
	}
}

func (s *fakeStore) CreateOrderWithItems(order *models.Order) error {
	s.createCalls++
	if s.duplicatesLeft > 0 {
		s.duplicatesLeft--
		return db.ErrDuplicateOrderNumber
	}
	stored := *order
	s.orders[order.ID] = &stored
	return nil
}

func (s *fakeStore) GetOrderByID(id string) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) GetOrderByNumber(number string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.OrderNumber == number {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) AttachPaymentIntent(orderID, preferenceID, initPoint string) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if order.MercadoPagoID != "" && order.MercadoPagoID != preferenceID {
		return false, nil
	}
	order.MercadoPagoID = preferenceID
	order.InitPoint = initPoint
	return true, nil
}

func (s *fakeStore) UpdateOrderStatusIfCurrent(orderID string, expected, next models.OrderStatus, payment models.PaymentStatus, rawStatus string) (bool, error) {
	s.updateCalls++
	order, ok := s.orders[orderID]
	if !ok || order.Status != expected {
		return false, nil
	}
	order.Status = next
	order.PaymentStatus = payment
	order.MercadoPagoStatus = rawStatus
	return true, nil
}

func (s *fakeStore) InsertNotificationIfAbsent(paymentID, action, payload string) (bool, string, error) {
	if outcome, ok := s.notifications[paymentID]; ok {
		return false, outcome, nil
	}
	s.notifications[paymentID] = models.NotificationReceived
	return true, "", nil
}

func (s *fakeStore) MarkNotificationApplied(paymentID string) error {
	s.notifications[paymentID] = models.NotificationApplied
	return nil
}

func (s *fakeStore) GetProductsByIDs(ids []string) (map[string]models.Product, error) {
	found := make(map[string]models.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

type fakeGateway struct {
	pref       *mercadopago.Preference
	prefErr    error
	payment    *mercadopago.Payment
	paymentErr error

	prefCalls  int
	fetchCalls int
}

func (g *fakeGateway) CreatePreference(ctx context.Context, pref *mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	g.prefCalls++
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	return g.pref, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	g.fetchCalls++
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.payment, nil
}

func newTestManager(store *fakeStore, gateway *fakeGateway) *Manager {
	cfg := &config.Config{
		BaseURL:      "http://localhost:3000",
		ShippingCost: 300000,
	}
	return NewManager(store, gateway, cfg, logging.GetSugaredLogger(), nil)
}

func validCheckout() *models.CheckoutRequest {
	return &models.CheckoutRequest{
		Items: []models.CheckoutItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 4500000},
		},
		Customer: models.CheckoutCustomer{
			CustomerName:    "María Pérez",
			CustomerEmail:   "maria@example.com",
			CustomerPhone:   "+56912345678",
			ShippingAddress: "Av. Providencia 123",
			ShippingCommune: "Providencia",
		},
	}
}

func seedProduct(store *fakeStore) {
	store.products["p1"] = models.Product{
		ID:        "p1",
		Name:      "Canapé de Salmón Ahumado",
		Price:     4500000,
		Available: true,
	}
}

func TestCreateOrderTotals(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	gateway := &fakeGateway{pref: &mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp/init"}}
	manager := newTestManager(store, gateway)

	resp, err := manager.CreateOrder(context.Background(), validCheckout())
	require.NoError(t, err)
	assert.Regexp(t, `^SE-\d+-[0-9A-Z]{5}$`, resp.OrderNumber)
	assert.Equal(t, "pref-1", resp.PreferenceID)
	assert.Equal(t, "https://mp/init", resp.InitPoint)
	assert.False(t, resp.PaymentPending)

	order, err := store.GetOrderByNumber(resp.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, int64(9000000), order.Subtotal)
	assert.Equal(t, int64(300000), order.ShippingCost)
	assert.Equal(t, int64(9300000), order.Total)
	assert.Equal(t, order.Subtotal+order.ShippingCost, order.Total)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, "pref-1", order.MercadoPagoID)
}

func TestCreateOrderIgnoresClientPrice(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	gateway := &fakeGateway{pref: &mercadopago.Preference{ID: "pref-1"}}
	manager := newTestManager(store, gateway)

	req := validCheckout()
	req.Items[0].UnitPrice = 1 // tampered

	resp, err := manager.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	order, _ := store.GetOrderByNumber(resp.OrderNumber)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(4500000), order.Items[0].UnitPrice)
	assert.Equal(t, int64(9000000), order.Subtotal)
}

func TestCreateOrderValidation(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	gateway := &fakeGateway{}
	manager := newTestManager(store, gateway)

	tests := []struct {
		name   string
		mutate func(*models.CheckoutRequest)
	}{
		{"empty cart", func(r *models.CheckoutRequest) { r.Items = nil }},
		{"zero quantity", func(r *models.CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{"missing name", func(r *models.CheckoutRequest) { r.Customer.CustomerName = "  " }},
		{"missing phone", func(r *models.CheckoutRequest) { r.Customer.CustomerPhone = "" }},
		{"missing address", func(r *models.CheckoutRequest) { r.Customer.ShippingAddress = "" }},
		{"bad email", func(r *models.CheckoutRequest) { r.Customer.CustomerEmail = "not-an-email" }},
		{"unknown product", func(r *models.CheckoutRequest) { r.Items[0].ProductID = "ghost" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCheckout()
			tt.mutate(req)

			_, err := manager.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Zero(t, store.createCalls, "invalid carts must never reach the store")
}

func TestCreateOrderUnavailableProduct(t *testing.T) {
	store := newFakeStore()
	store.products["p1"] = models.Product{ID: "p1", Name: "Agotado", Price: 1000, Available: false}
	manager := newTestManager(store, &fakeGateway{})

	_, err := manager.CreateOrder(context.Background(), validCheckout())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrderNumberCollisionRetries(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	store.duplicatesLeft = 1
	gateway := &fakeGateway{pref: &mercadopago.Preference{ID: "pref-1"}}
	manager := newTestManager(store, gateway)

	resp, err := manager.CreateOrder(context.Background(), validCheckout())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OrderNumber)
	assert.Equal(t, 2, store.createCalls, "one collision, one regeneration")
}

func TestCreateOrderNumberCollisionExhausted(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	store.duplicatesLeft = 10
	manager := newTestManager(store, &fakeGateway{})

	_, err := manager.CreateOrder(context.Background(), validCheckout())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, orderNumberAttempts, store.createCalls)
}

func TestCreateOrderSurvivesGatewayFailure(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	gateway := &fakeGateway{prefErr: mercadopago.ErrTransient}
	manager := newTestManager(store, gateway)

	resp, err := manager.CreateOrder(context.Background(), validCheckout())
	require.NoError(t, err)
	assert.True(t, resp.PaymentPending)
	assert.Empty(t, resp.InitPoint)

	order, _ := store.GetOrderByNumber(resp.OrderNumber)
	require.NotNil(t, order, "order must be kept when the gateway is down")
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Empty(t, order.MercadoPagoID)
}

func TestRetryPaymentIdempotent(t *testing.T) {
	store := newFakeStore()
	store.orders["o1"] = &models.Order{
		ID:            "o1",
		OrderNumber:   "SE-1-AAAAA",
		MercadoPagoID: "pref-old",
		InitPoint:     "https://mp/old",
	}
	gateway := &fakeGateway{pref: &mercadopago.Preference{ID: "pref-new"}}
	manager := newTestManager(store, gateway)

	resp, err := manager.RetryPayment(context.Background(), "SE-1-AAAAA")
	require.NoError(t, err)
	assert.Equal(t, "pref-old", resp.PreferenceID)
	assert.Equal(t, "https://mp/old", resp.InitPoint)
	assert.Zero(t, gateway.prefCalls, "attached intent must not be recreated")
}

func TestRetryPaymentAttaches(t *testing.T) {
	store := newFakeStore()
	store.orders["o1"] = &models.Order{ID: "o1", OrderNumber: "SE-1-AAAAA"}
	gateway := &fakeGateway{pref: &mercadopago.Preference{ID: "pref-new", InitPoint: "https://mp/new"}}
	manager := newTestManager(store, gateway)

	resp, err := manager.RetryPayment(context.Background(), "SE-1-AAAAA")
	require.NoError(t, err)
	assert.Equal(t, "pref-new", resp.PreferenceID)
	assert.Equal(t, "pref-new", store.orders["o1"].MercadoPagoID)
}

func TestRetryPaymentUnknownOrder(t *testing.T) {
	manager := newTestManager(newFakeStore(), &fakeGateway{})

	_, err := manager.RetryPayment(context.Background(), "SE-404-XXXXX")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func pendingOrder(store *fakeStore) *models.Order {
	order := &models.Order{
		ID:            "o1",
		OrderNumber:   "SE-1-AAAAA",
		CustomerName:  "María Pérez",
		CustomerEmail: "maria@example.com",
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
		Total:         9300000,
	}
	store.orders[order.ID] = order
	return order
}

func TestReconcileApprovedAppliesOnce(t *testing.T) {
	store := newFakeStore()
	pendingOrder(store)
	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 12345, Status: "approved", ExternalReference: "o1"}}
	manager := newTestManager(store, gateway)

	outcome, err := manager.Reconcile(context.Background(), "12345", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	order := store.orders["o1"]
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "approved", order.MercadoPagoStatus)
	assert.Equal(t, models.NotificationApplied, store.notifications["12345"])

	// identical redelivery short-circuits before touching gateway or order
	outcome, err = manager.Reconcile(context.Background(), "12345", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyApplied, outcome)
	assert.Equal(t, 1, gateway.fetchCalls)
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, models.OrderConfirmed, store.orders["o1"].Status)
}

func TestReconcileRejectedThenApprovedIsNoOp(t *testing.T) {
	store := newFakeStore()
	pendingOrder(store)
	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 1, Status: "rejected", ExternalReference: "o1"}}
	manager := newTestManager(store, gateway)

	outcome, err := manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.OrderCancelled, store.orders["o1"].Status)
	assert.Equal(t, models.PaymentFailed, store.orders["o1"].PaymentStatus)

	// a later approval for the same order arrives under a fresh payment id
	gateway.payment = &mercadopago.Payment{ID: 2, Status: "approved", ExternalReference: "o1"}

	outcome, err = manager.Reconcile(context.Background(), "pay-2", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Equal(t, models.OrderCancelled, store.orders["o1"].Status, "terminal order must not move")
	assert.Equal(t, models.NotificationApplied, store.notifications["pay-2"])
}

func TestReconcilePendingStaysRetryable(t *testing.T) {
	store := newFakeStore()
	pendingOrder(store)
	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 1, Status: "pending", ExternalReference: "o1"}}
	manager := newTestManager(store, gateway)

	outcome, err := manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentCreated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Equal(t, models.NotificationReceived, store.notifications["pay-1"],
		"pending delivery must not lock the payment id")

	// the gateway later reports the same payment as approved
	gateway.payment = &mercadopago.Payment{ID: 1, Status: "approved", ExternalReference: "o1"}

	outcome, err = manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.OrderConfirmed, store.orders["o1"].Status)
}

func TestReconcileTransientLeavesRecordUnapplied(t *testing.T) {
	store := newFakeStore()
	pendingOrder(store)
	gateway := &fakeGateway{paymentErr: mercadopago.ErrTransient}
	manager := newTestManager(store, gateway)

	_, err := manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentUpdated, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, mercadopago.ErrTransient)
	assert.Equal(t, models.NotificationReceived, store.notifications["pay-1"])
	assert.Equal(t, models.OrderPending, store.orders["o1"].Status)
}

func TestReconcileUnknownOrder(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 1, Status: "approved", ExternalReference: "ghost"}}
	manager := newTestManager(store, gateway)

	_, err := manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentUpdated, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, models.NotificationReceived, store.notifications["pay-1"])
}

func TestReconcileMissingExternalReference(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 1, Status: "approved"}}
	manager := newTestManager(store, gateway)

	_, err := manager.Reconcile(context.Background(), "pay-1", models.WebhookActionPaymentUpdated, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestReconcileConcurrentLoser(t *testing.T) {
	store := newFakeStore()
	order := pendingOrder(store)
	// another instance already moved the order but this payment id is new
	order.Status = models.OrderConfirmed
	order.PaymentStatus = models.PaymentPaid

	gateway := &fakeGateway{payment: &mercadopago.Payment{ID: 1, Status: "approved", ExternalReference: "o1"}}
	manager := newTestManager(store, gateway)

	outcome, err := manager.Reconcile(context.Background(), "pay-9", models.WebhookActionPaymentUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Equal(t, models.OrderConfirmed, store.orders["o1"].Status)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("maria@example.com"))
	assert.False(t, ValidEmail("maria@example"))
	assert.False(t, ValidEmail("maria example@com.cl"))
	assert.False(t, ValidEmail(""))
}

func TestCreateOrderStoreFailure(t *testing.T) {
	store := newFakeStore()
	seedProduct(store)
	manager := newTestManager(store, &fakeGateway{})
	manager.Store = &failingStore{fakeStore: store}

	_, err := manager.CreateOrder(context.Background(), validCheckout())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
}

type failingStore struct {
	*fakeStore
}

func (s *failingStore) CreateOrderWithItems(order *models.Order) error {
	return errors.New("connection refused")
}
