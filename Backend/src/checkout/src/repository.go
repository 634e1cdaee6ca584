package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite" // driver 100% Go
)

var ErrNotFound = errors.New("not found")

// querier abstrae *sql.DB y *sql.Tx: las lecturas de snapshot y de cupones se
// ejecutan igual fuera (preview) o dentro (commit) de una transacción.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	// busy_timeout + WAL para no chocar con "database is locked"
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetMaxOpenConns(1)

	r := &Repository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS books(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  author TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_unix INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS projects(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_unix INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS games(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  genre TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_unix INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS cart_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  item_type TEXT NOT NULL,
  item_id INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  UNIQUE(user_id, item_type, item_id)
);
CREATE TABLE IF NOT EXISTS coupons(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  code TEXT NOT NULL UNIQUE COLLATE NOCASE,
  discount_type TEXT NOT NULL,
  discount_value REAL NOT NULL,
  min_order_cents INTEGER NOT NULL DEFAULT 0,
  max_discount_cents INTEGER,
  usage_limit INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  valid_from_unix INTEGER NOT NULL,
  valid_until_unix INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS coupon_usages(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  coupon_id INTEGER NOT NULL,
  user_id INTEGER NOT NULL,
  order_id INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL,
  used_unix INTEGER NOT NULL,
  UNIQUE(coupon_id, user_id),
  FOREIGN KEY(coupon_id) REFERENCES coupons(id)
);
CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  number TEXT NOT NULL UNIQUE,
  user_id INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  promo_code TEXT NOT NULL DEFAULT '',
  billing_name TEXT NOT NULL DEFAULT '',
  billing_email TEXT NOT NULL DEFAULT '',
  created_unix INTEGER NOT NULL,
  updated_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  item_type TEXT NOT NULL,
  item_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  unit_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  line_cents INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  FOREIGN KEY(order_id) REFERENCES orders(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS custom_orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  budget_cents INTEGER NOT NULL DEFAULT 0,
  quote_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  created_unix INTEGER NOT NULL,
  updated_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_user ON cart_items(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_usages_coupon ON coupon_usages(coupon_id, user_id);
`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

// ---- carrito ----

func (r *Repository) GetCartLines(ctx context.Context, userID int64) ([]CartLine, error) {
	return getCartLines(ctx, r.db, userID)
}

func getCartLines(ctx context.Context, q querier, userID int64) ([]CartLine, error) {
	rows, err := q.QueryContext(ctx, `
    SELECT user_id, item_type, item_id, qty
    FROM cart_items WHERE user_id=? ORDER BY item_type, item_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartLine
	for rows.Next() {
		var ln CartLine
		if err := rows.Scan(&ln.UserID, &ln.ItemType, &ln.ItemID, &ln.Qty); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

func (r *Repository) AddCartItem(ctx context.Context, userID int64, itemType string, itemID int64, qty int32) error {
	if !validItemType(itemType) {
		return &CheckoutError{Kind: CheckoutInvalidInput, Message: "unknown item type"}
	}
	if qty < 1 {
		return &CheckoutError{Kind: CheckoutInvalidInput, Message: "quantity must be at least 1"}
	}
	_, err := r.db.ExecContext(ctx, `
    INSERT INTO cart_items(user_id, item_type, item_id, qty)
    VALUES(?,?,?,?)
    ON CONFLICT(user_id, item_type, item_id)
    DO UPDATE SET qty = qty + excluded.qty`,
		userID, itemType, itemID, qty)
	return err
}

// UpdateCartItem fija la cantidad; qty <= 0 elimina la línea
func (r *Repository) UpdateCartItem(ctx context.Context, userID int64, itemType string, itemID int64, qty int32) error {
	if qty <= 0 {
		return r.RemoveCartItem(ctx, userID, itemType, itemID)
	}
	_, err := r.db.ExecContext(ctx, `
    UPDATE cart_items SET qty=? WHERE user_id=? AND item_type=? AND item_id=?`,
		qty, userID, itemType, itemID)
	return err
}

func (r *Repository) RemoveCartItem(ctx context.Context, userID int64, itemType string, itemID int64) error {
	_, err := r.db.ExecContext(ctx, `
    DELETE FROM cart_items WHERE user_id=? AND item_type=? AND item_id=?`,
		userID, itemType, itemID)
	return err
}

func (r *Repository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=?`, userID)
	return err
}

// ---- cupones (Repository implementa CouponStore sobre la conexión) ----

func (r *Repository) FindActiveCoupon(ctx context.Context, code string, now time.Time) (*Coupon, error) {
	return findActiveCoupon(ctx, r.db, code, now)
}

func (r *Repository) CountUsage(ctx context.Context, couponID, userID int64) (int64, error) {
	return countUsage(ctx, r.db, couponID, userID)
}

func findActiveCoupon(ctx context.Context, q querier, code string, now time.Time) (*Coupon, error) {
	row := q.QueryRowContext(ctx, `
    SELECT id, code, discount_type, discount_value, min_order_cents,
           max_discount_cents, usage_limit, used_count,
           valid_from_unix, valid_until_unix, is_active
    FROM coupons
    WHERE code=? COLLATE NOCASE AND is_active=1
      AND valid_from_unix <= ? AND valid_until_unix >= ?`,
		code, now.Unix(), now.Unix())
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderCents,
		&c.MaxDiscountCents, &c.UsageLimit, &c.UsedCount,
		&c.ValidFromUnix, &c.ValidUntilUnix, &c.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func countUsage(ctx context.Context, q querier, couponID, userID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `
    SELECT COUNT(1) FROM coupon_usages WHERE coupon_id=? AND user_id=?`,
		couponID, userID).Scan(&n)
	return n, err
}

func (r *Repository) GetCoupon(ctx context.Context, id int64) (*Coupon, error) {
	row := r.db.QueryRowContext(ctx, `
    SELECT id, code, discount_type, discount_value, min_order_cents,
           max_discount_cents, usage_limit, used_count,
           valid_from_unix, valid_until_unix, is_active
    FROM coupons WHERE id=?`, id)
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderCents,
		&c.MaxDiscountCents, &c.UsageLimit, &c.UsedCount,
		&c.ValidFromUnix, &c.ValidUntilUnix, &c.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- órdenes ----

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
    SELECT id, number, user_id, subtotal_cents, discount_cents, tax_cents,
           shipping_cents, total_cents, status, payment_method, promo_code,
           billing_name, billing_email, created_unix, updated_unix
    FROM orders WHERE id=?`, orderID)
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.SubtotalCents, &o.DiscountCents,
		&o.TaxCents, &o.ShippingCents, &o.TotalCents, &o.Status, &o.PaymentMethod,
		&o.PromoCode, &o.BillingName, &o.BillingEmail, &o.CreatedUnix, &o.UpdatedUnix)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.listOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repository) listOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
    SELECT id, order_id, item_type, item_id, title, unit_cents, qty, line_cents, size_bytes
    FROM order_items WHERE order_id=?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemType, &it.ItemID, &it.Title,
			&it.UnitCents, &it.Qty, &it.LineCents, &it.SizeBytes); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `
    SELECT id, number, user_id, subtotal_cents, discount_cents, tax_cents,
           shipping_cents, total_cents, status, payment_method, promo_code,
           billing_name, billing_email, created_unix, updated_unix
    FROM orders WHERE user_id=? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Number, &o.UserID, &o.SubtotalCents, &o.DiscountCents,
			&o.TaxCents, &o.ShippingCents, &o.TotalCents, &o.Status, &o.PaymentMethod,
			&o.PromoCode, &o.BillingName, &o.BillingEmail, &o.CreatedUnix, &o.UpdatedUnix); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus valida la transición del estado antes de escribir.
// CommitOrder solo crea órdenes en pending; mover el estado es trabajo del
// flujo de aprobación del admin.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*Order, error) {
	o, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(o.Status, status) {
		return nil, &CheckoutError{
			Kind:    CheckoutInvalidTransition,
			Message: "cannot move order from " + o.Status + " to " + status,
		}
	}
	// el UPDATE re-verifica el estado leído: si otra transición ganó en el
	// medio, RowsAffected lo delata y no se escribe nada
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=?, updated_unix=? WHERE id=? AND status=?`,
		status, nowUnix(), orderID, o.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &CheckoutError{
			Kind:    CheckoutInvalidTransition,
			Message: "order status changed concurrently, retry",
		}
	}
	return r.GetOrder(ctx, orderID)
}

// ---- solicitudes de desarrollo a medida ----

func (r *Repository) CreateCustomOrder(ctx context.Context, co *CustomOrder) (int64, error) {
	now := nowUnix()
	res, err := r.db.ExecContext(ctx, `
    INSERT INTO custom_orders(user_id, title, details, budget_cents, quote_cents, status, created_unix, updated_unix)
    VALUES(?,?,?,?,0,?,?,?)`,
		co.UserID, co.Title, co.Details, co.BudgetCents, CustomStatusPending, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) ListCustomOrders(ctx context.Context, userID int64) ([]CustomOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
    SELECT id, user_id, title, details, budget_cents, quote_cents, status, created_unix, updated_unix
    FROM custom_orders WHERE user_id=? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CustomOrder
	for rows.Next() {
		var co CustomOrder
		if err := rows.Scan(&co.ID, &co.UserID, &co.Title, &co.Details, &co.BudgetCents,
			&co.QuoteCents, &co.Status, &co.CreatedUnix, &co.UpdatedUnix); err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCustomOrderStatus(ctx context.Context, id int64, status string, quoteCents int64) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM custom_orders WHERE id=?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	allowed := false
	for _, s := range customTransitions[current] {
		if s == status {
			allowed = true
		}
	}
	if !allowed {
		return &CheckoutError{
			Kind:    CheckoutInvalidTransition,
			Message: "cannot move request from " + current + " to " + status,
		}
	}
	_, err = r.db.ExecContext(ctx, `
    UPDATE custom_orders SET status=?, quote_cents=?, updated_unix=? WHERE id=?`,
		status, quoteCents, nowUnix(), id)
	return err
}
