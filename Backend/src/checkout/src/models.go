package main

import (
	"database/sql"
	"time"
)

// Tipos de ítem del catálogo; cada tipo vive en su propia tabla
const (
	ItemTypeBook    = "book"
	ItemTypeProject = "project"
	ItemTypeGame    = "game"
)

func validItemType(t string) bool {
	return t == ItemTypeBook || t == ItemTypeProject || t == ItemTypeGame
}

// Estados del ciclo de vida de la orden (las transiciones las maneja el admin)
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted},
}

func canTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

type CartLine struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	ItemType string `db:"item_type" json:"item_type"`
	ItemID   int64  `db:"item_id" json:"item_id"`
	Qty      int32  `db:"qty" json:"qty"`
}

// PricedLineItem es una línea de carrito resuelta contra el catálogo vigente.
// No se persiste: solo existe entre el snapshot y el commit de la orden.
type PricedLineItem struct {
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	Title     string `json:"title"`
	UnitCents int64  `json:"unit_cents"`
	Qty       int32  `json:"qty"`
	LineCents int64  `json:"line_cents"`
	SizeBytes int64  `json:"size_bytes"`
}

type Coupon struct {
	ID               int64         `db:"id" json:"id"`
	Code             string        `db:"code" json:"code"`
	DiscountType     string        `db:"discount_type" json:"discount_type"`
	DiscountValue    float64       `db:"discount_value" json:"discount_value"` // porcentaje o monto según discount_type
	MinOrderCents    int64         `db:"min_order_cents" json:"min_order_cents"`
	MaxDiscountCents sql.NullInt64 `db:"max_discount_cents" json:"-"` // solo para percentage
	UsageLimit       sql.NullInt64 `db:"usage_limit" json:"-"`       // NULL = ilimitado
	UsedCount        int64         `db:"used_count" json:"used_count"`
	ValidFromUnix    int64         `db:"valid_from_unix" json:"valid_from_unix"`
	ValidUntilUnix   int64         `db:"valid_until_unix" json:"valid_until_unix"`
	IsActive         bool          `db:"is_active" json:"is_active"`
}

type OrderTotals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type Order struct {
	ID            int64       `db:"id" json:"id"`
	Number        string      `db:"number" json:"number"`
	UserID        int64       `db:"user_id" json:"user_id"`
	SubtotalCents int64       `db:"subtotal_cents" json:"subtotal_cents"`
	DiscountCents int64       `db:"discount_cents" json:"discount_cents"`
	TaxCents      int64       `db:"tax_cents" json:"tax_cents"`
	ShippingCents int64       `db:"shipping_cents" json:"shipping_cents"`
	TotalCents    int64       `db:"total_cents" json:"total_cents"`
	Status        string      `db:"status" json:"status"`
	PaymentMethod string      `db:"payment_method" json:"payment_method"`
	PromoCode     string      `db:"promo_code" json:"promo_code"`
	BillingName   string      `db:"billing_name" json:"billing_name"`
	BillingEmail  string      `db:"billing_email" json:"billing_email"`
	CreatedUnix   int64       `db:"created_unix" json:"created_unix"`
	UpdatedUnix   int64       `db:"updated_unix" json:"updated_unix"`
	Items         []OrderItem `json:"items"`
}

// OrderItem congela título y precio al momento de la compra; cambios
// posteriores del catálogo no alteran órdenes históricas.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ItemType  string `db:"item_type" json:"item_type"`
	ItemID    int64  `db:"item_id" json:"item_id"`
	Title     string `db:"title" json:"title"`
	UnitCents int64  `db:"unit_cents" json:"unit_cents"`
	Qty       int32  `db:"qty" json:"qty"`
	LineCents int64  `db:"line_cents" json:"line_cents"`
	SizeBytes int64  `db:"size_bytes" json:"size_bytes"`
}

type CouponUsage struct {
	ID            int64 `db:"id" json:"id"`
	CouponID      int64 `db:"coupon_id" json:"coupon_id"`
	UserID        int64 `db:"user_id" json:"user_id"`
	OrderID       int64 `db:"order_id" json:"order_id"`
	DiscountCents int64 `db:"discount_cents" json:"discount_cents"`
	UsedUnix      int64 `db:"used_unix" json:"used_unix"`
}

type CheckoutRequest struct {
	UserID        int64  `json:"user_id"`
	BillingName   string `json:"billing_name"`
	BillingEmail  string `json:"billing_email"`
	PaymentMethod string `json:"payment_method"`
	PromoCode     string `json:"promo_code,omitempty"`
}

// Estados de las solicitudes de desarrollo a medida
const (
	CustomStatusPending  = "pending"
	CustomStatusQuoted   = "quoted"
	CustomStatusAccepted = "accepted"
	CustomStatusRejected = "rejected"
)

var customTransitions = map[string][]string{
	CustomStatusPending: {CustomStatusQuoted, CustomStatusRejected},
	CustomStatusQuoted:  {CustomStatusAccepted, CustomStatusRejected},
}

type CustomOrder struct {
	ID          int64  `db:"id" json:"id"`
	UserID      int64  `db:"user_id" json:"user_id"`
	Title       string `db:"title" json:"title"`
	Details     string `db:"details" json:"details"`
	BudgetCents int64  `db:"budget_cents" json:"budget_cents"`
	QuoteCents  int64  `db:"quote_cents" json:"quote_cents"`
	Status      string `db:"status" json:"status"`
	CreatedUnix int64  `db:"created_unix" json:"created_unix"`
	UpdatedUnix int64  `db:"updated_unix" json:"updated_unix"`
}

func nowUnix() int64 { return time.Now().Unix() }
