package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mcalor/sabor-emilia/config"
	_ "github.com/mcalor/sabor-emilia/internal/db/migrations"
	"github.com/mcalor/sabor-emilia/models"
)

// ErrDuplicateOrderNumber is returned when the order_number unique
// constraint rejects an insert; the caller regenerates and retries.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

type Manager struct {
	DB *sql.DB
}

func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := &Manager{
		DB: db,
	}

	if err = goose.Up(db, "./internal/db/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	return manager, nil
}

// CreateOrderWithItems writes the order and its items in one transaction,
// so the items are never materialized without their parent order.
func (m *Manager) CreateOrderWithItems(order *models.Order) error {
	tx, err := m.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO orders (id, order_number, customer_name, customer_email, customer_phone,
                            shipping_address, shipping_commune, subtotal, shipping_cost, total,
                            notes, status, payment_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, order.ID, order.OrderNumber, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.ShippingAddress, order.ShippingCommune, order.Subtotal, order.ShippingCost, order.Total,
		order.Notes, order.Status, order.PaymentStatus)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.Exec(`
            INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, total)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, item.ID, order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Total)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (m *Manager) GetOrderByID(id string) (*models.Order, error) {
	return m.getOrder(`WHERE id = $1`, id)
}

func (m *Manager) GetOrderByNumber(number string) (*models.Order, error) {
	return m.getOrder(`WHERE order_number = $1`, number)
}

func (m *Manager) getOrder(where string, arg string) (*models.Order, error) {
	var order models.Order

	err := m.DB.QueryRow(`
		SELECT id, order_number, customer_name, customer_email, customer_phone,
		       shipping_address, shipping_commune, subtotal, shipping_cost, total,
		       notes, status, payment_status, mercado_pago_id, mercado_pago_status,
		       init_point, created_at, updated_at
		FROM orders `+where,
		arg).Scan(&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail,
		&order.CustomerPhone, &order.ShippingAddress, &order.ShippingCommune, &order.Subtotal,
		&order.ShippingCost, &order.Total, &order.Notes, &order.Status, &order.PaymentStatus,
		&order.MercadoPagoID, &order.MercadoPagoStatus, &order.InitPoint,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := m.loadItems(order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (m *Manager) loadItems(orderID string) ([]models.OrderItem, error) {
	rows, err := m.DB.Query(`
		SELECT id, order_id, product_id, product_name, quantity, unit_price, total
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err = rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Total)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}

	return items, nil
}

// AttachPaymentIntent links a gateway preference to the order. Re-attaching
// the same preference id reports true, a different one reports false.
func (m *Manager) AttachPaymentIntent(orderID, preferenceID, initPoint string) (bool, error) {
	res, err := m.DB.Exec(`
		UPDATE orders
		SET mercado_pago_id = $1, init_point = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND (mercado_pago_id = '' OR mercado_pago_id = $1)
	`, preferenceID, initPoint, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to attach payment intent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// UpdateOrderStatusIfCurrent applies the status pair only when the order is
// still in the expected state, making the transition a single conditional
// write.
func (m *Manager) UpdateOrderStatusIfCurrent(orderID string, expected, next models.OrderStatus, payment models.PaymentStatus, rawStatus string) (bool, error) {
	res, err := m.DB.Exec(`
		UPDATE orders
		SET status = $1, payment_status = $2, mercado_pago_status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND status = $5
	`, next, payment, rawStatus, orderID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// SetOrderStatus is the administrative path, no current-state guard.
func (m *Manager) SetOrderStatus(orderNumber string, status models.OrderStatus) (bool, error) {
	res, err := m.DB.Exec(`
		UPDATE orders
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE order_number = $2
	`, status, orderNumber)
	if err != nil {
		return false, fmt.Errorf("failed to set order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// InsertNotificationIfAbsent records a webhook delivery keyed by the gateway
// payment id. When the row already exists the stored outcome is returned so
// the caller can short-circuit already-applied deliveries.
func (m *Manager) InsertNotificationIfAbsent(paymentID, action, payload string) (bool, string, error) {
	res, err := m.DB.Exec(`
		INSERT INTO payment_notifications (payment_id, action, payload, outcome)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_id) DO NOTHING
	`, paymentID, action, payload, models.NotificationReceived)
	if err != nil {
		return false, "", fmt.Errorf("failed to insert payment notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return true, "", nil
	}

	var outcome string
	err = m.DB.QueryRow(`
		SELECT outcome FROM payment_notifications WHERE payment_id = $1
	`, paymentID).Scan(&outcome)
	if err != nil {
		return false, "", fmt.Errorf("failed to get notification outcome: %w", err)
	}

	return false, outcome, nil
}

func (m *Manager) MarkNotificationApplied(paymentID string) error {
	_, err := m.DB.Exec(`
		UPDATE payment_notifications SET outcome = $1 WHERE payment_id = $2
	`, models.NotificationApplied, paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark notification applied: %w", err)
	}

	return nil
}

// GetProductsByIDs returns the live catalog rows for the given ids; missing
// ids are simply absent from the map.
func (m *Manager) GetProductsByIDs(ids []string) (map[string]models.Product, error) {
	if len(ids) == 0 {
		return map[string]models.Product{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := m.DB.Query(`
		SELECT id, name, description, price, image_url, category_slug, available, created_at
		FROM products
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]models.Product)
	for rows.Next() {
		var p models.Product
		err = rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
			&p.CategorySlug, &p.Available, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return products, nil
}

func (m *Manager) ListProducts() ([]models.Product, error) {
	rows, err := m.DB.Query(`
		SELECT id, name, description, price, image_url, category_slug, available, created_at
		FROM products
		WHERE available = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		err = rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
			&p.CategorySlug, &p.Available, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return products, nil
}

func (m *Manager) CreateContact(contact *models.Contact) error {
	_, err := m.DB.Exec(`
		INSERT INTO contacts (id, name, email, phone, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, contact.ID, contact.Name, contact.Email, contact.Phone, contact.Message, contact.Status)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}

	return nil
}

func (m *Manager) GetAdminByEmail(email string) (models.AdminUser, error) {
	var admin models.AdminUser

	err := m.DB.QueryRow(`
		SELECT id, email, password
		FROM admin_users
		WHERE email = $1
	`, email).Scan(&admin.ID, &admin.Email, &admin.Password)
	if err != nil {
		return admin, fmt.Errorf("failed to get admin user: %w", err)
	}

	return admin, nil
}

func (m *Manager) GetStats() (models.Stats, error) {
	var stats models.Stats

	err := m.DB.QueryRow(`
		SELECT (SELECT COUNT(*) FROM products),
		       (SELECT COUNT(*) FROM orders),
		       (SELECT COUNT(*) FROM contacts),
		       (SELECT COALESCE(SUM(total), 0) FROM orders WHERE payment_status = 'PAID'),
		       (SELECT COUNT(*) FROM orders WHERE status = 'PENDING'),
		       (SELECT COUNT(*) FROM orders WHERE status IN ('CONFIRMED', 'DELIVERED')),
		       (SELECT COUNT(*) FROM orders WHERE status = 'CANCELLED')
	`).Scan(&stats.TotalProducts, &stats.TotalOrders, &stats.TotalContacts, &stats.TotalRevenue,
		&stats.PendingOrders, &stats.CompletedOrders, &stats.CancelledOrders)
	if err != nil {
		return stats, fmt.Errorf("failed to get stats: %w", err)
	}

	return stats, nil
}

func (m *Manager) GetRecentOrders(limit int) ([]models.RecentOrder, error) {
	rows, err := m.DB.Query(`
		SELECT id, order_number, customer_name, total, status, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent orders: %w", err)
	}
	defer rows.Close()

	var orders []models.RecentOrder
	for rows.Next() {
		var o models.RecentOrder
		err = rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.Total, &o.Status, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recent order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent orders: %w", err)
	}

	return orders, nil
}

func (m *Manager) Close() error {
	return m.DB.Close()
}
