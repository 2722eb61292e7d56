package db

import (
	"github.com/mcalor/sabor-emilia/models"
)

type Database interface {
	CreateOrderWithItems(order *models.Order) error
	GetOrderByID(id string) (*models.Order, error)
	GetOrderByNumber(number string) (*models.Order, error)
	AttachPaymentIntent(orderID, preferenceID, initPoint string) (bool, error)
	UpdateOrderStatusIfCurrent(orderID string, expected, next models.OrderStatus, payment models.PaymentStatus, rawStatus string) (bool, error)
	SetOrderStatus(orderNumber string, status models.OrderStatus) (bool, error)

	InsertNotificationIfAbsent(paymentID, action, payload string) (bool, string, error)
	MarkNotificationApplied(paymentID string) error

	GetProductsByIDs(ids []string) (map[string]models.Product, error)
	ListProducts() ([]models.Product, error)

	CreateContact(contact *models.Contact) error
	GetAdminByEmail(email string) (models.AdminUser, error)
	GetStats() (models.Stats, error)
	GetRecentOrders(limit int) ([]models.RecentOrder, error)

	Close() error
}
