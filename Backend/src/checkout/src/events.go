package main

// Eventos publicados por checkout
const (
	RKOrderCreated       = "order.created"
	RKOrderStatusChanged = "order.status_changed"
)

type OrderItemEvt struct {
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	Title     string `json:"title"`
	Qty       int32  `json:"qty"`
	UnitCents int64  `json:"unit_cents"`
	LineCents int64  `json:"line_cents"`
	SizeBytes int64  `json:"size_bytes"`
}

type OrderCreatedPayload struct {
	OrderID       int64          `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	UserID        int64          `json:"user_id"`
	Items         []OrderItemEvt `json:"items"`
	SubtotalCents int64          `json:"subtotal_cents"`
	DiscountCents int64          `json:"discount_cents"`
	TotalCents    int64          `json:"total_cents"`
	PromoCode     string         `json:"promo_code,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	UserID      int64          `json:"user_id"`
	Status      string         `json:"status"`
	Items       []OrderItemEvt `json:"items"`
}

func orderItemsToEvt(items []OrderItem) []OrderItemEvt {
	out := make([]OrderItemEvt, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemEvt{
			ItemType:  it.ItemType,
			ItemID:    it.ItemID,
			Title:     it.Title,
			Qty:       it.Qty,
			UnitCents: it.UnitCents,
			LineCents: it.LineCents,
			SizeBytes: it.SizeBytes,
		})
	}
	return out
}
