package main

// Eventos que consume library
const (
	RKOrderStatusChanged = "order.status_changed"
)

const OrderStatusCompleted = "completed"

type OrderItemEvt struct {
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	Title     string `json:"title"`
	Qty       int32  `json:"qty"`
	SizeBytes int64  `json:"size_bytes"`
}

type OrderStatusChangedPayload struct {
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	UserID      int64          `json:"user_id"`
	Status      string         `json:"status"`
	Items       []OrderItemEvt `json:"items"`
}
