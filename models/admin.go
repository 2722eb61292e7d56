package models

type AdminUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

type AdminCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Stats struct {
	TotalProducts   int64 `json:"totalProducts"`
	TotalOrders     int64 `json:"totalOrders"`
	TotalContacts   int64 `json:"totalContacts"`
	TotalRevenue    int64 `json:"totalRevenue"`
	PendingOrders   int64 `json:"pendingOrders"`
	CompletedOrders int64 `json:"completedOrders"`
	CancelledOrders int64 `json:"cancelledOrders"`
}

type RecentOrder struct {
	ID           string      `json:"id"`
	OrderNumber  string      `json:"orderNumber"`
	CustomerName string      `json:"customerName"`
	Total        int64       `json:"total"`
	Status       OrderStatus `json:"status"`
	CreatedAt    string      `json:"createdAt"`
}
