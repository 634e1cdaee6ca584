package main

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// txCouponStore ejecuta los chequeos de cupón sobre la transacción del commit:
// la evaluación hecha en el preview puede estar vieja para cuando el usuario
// confirma, así que CommitOrder la repite aquí dentro.
type txCouponStore struct{ tx *sql.Tx }

func (s txCouponStore) FindActiveCoupon(ctx context.Context, code string, now time.Time) (*Coupon, error) {
	return findActiveCoupon(ctx, s.tx, code, now)
}

func (s txCouponStore) CountUsage(ctx context.Context, couponID, userID int64) (int64, error) {
	return countUsage(ctx, s.tx, couponID, userID)
}

// CommitOrder convierte el carrito en una orden persistida, todo o nada:
// snapshot, re-evaluación del cupón, orden + ítems + uso de cupón + limpieza
// del carrito dentro de una sola transacción. Si cualquier paso falla no queda
// nada escrito.
func (r *Repository) CommitOrder(ctx context.Context, req CheckoutRequest, taxRate float64, shippingCents int64) (*Order, []string, error) {
	if req.UserID <= 0 {
		return nil, nil, &CheckoutError{Kind: CheckoutInvalidInput, Message: "user_id is required"}
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, nil, &CheckoutError{Kind: CheckoutInvalidInput, Message: "payment_method is required"}
	}

	// Carrito vacío se rechaza antes de abrir la transacción
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM cart_items WHERE user_id=?`, req.UserID).Scan(&n); err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, &CheckoutError{Kind: CheckoutEmptyCart, Message: "your cart is empty"}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 1) snapshot fresco dentro de la transacción
	lines, warnings, err := snapshotCart(ctx, tx, req.UserID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		// todas las líneas quedaron excluidas por catálogo inactivo
		return nil, warnings, &CheckoutError{Kind: CheckoutEmptyCart, Message: "your cart has no purchasable items"}
	}

	var subtotal int64
	for _, ln := range lines {
		subtotal += ln.LineCents
	}

	// 2) re-evaluación del cupón con el subtotal fresco; si ahora falla donde
	// antes pasó (p.ej. límite agotado por un checkout concurrente) se aborta
	// con ese error, nunca se descarta el descuento en silencio
	now := time.Now()
	var coupon *CouponResult
	if strings.TrimSpace(req.PromoCode) != "" {
		coupon, err = EvaluateCoupon(ctx, txCouponStore{tx: tx}, req.PromoCode, subtotal, req.UserID, now)
		if err != nil {
			return nil, warnings, err
		}
	}

	// 3) totales
	var discount int64
	if coupon != nil {
		discount = coupon.DiscountCents
	}
	totals := ComposeTotals(lines, discount, taxRate, shippingCents)

	// 4) orden en pending
	o := Order{
		Number:        uuid.NewString(),
		UserID:        req.UserID,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		TaxCents:      totals.TaxCents,
		ShippingCents: totals.ShippingCents,
		TotalCents:    totals.TotalCents,
		Status:        OrderStatusPending,
		PaymentMethod: req.PaymentMethod,
		BillingName:   req.BillingName,
		BillingEmail:  req.BillingEmail,
		CreatedUnix:   now.Unix(),
		UpdatedUnix:   now.Unix(),
	}
	if coupon != nil {
		o.PromoCode = coupon.Coupon.Code
	}
	res, err := tx.ExecContext(ctx, `
    INSERT INTO orders(number, user_id, subtotal_cents, discount_cents, tax_cents,
                       shipping_cents, total_cents, status, payment_method, promo_code,
                       billing_name, billing_email, created_unix, updated_unix)
    VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.Number, o.UserID, o.SubtotalCents, o.DiscountCents, o.TaxCents,
		o.ShippingCents, o.TotalCents, o.Status, o.PaymentMethod, o.PromoCode,
		o.BillingName, o.BillingEmail, o.CreatedUnix, o.UpdatedUnix)
	if err != nil {
		return nil, warnings, err
	}
	o.ID, err = res.LastInsertId()
	if err != nil {
		return nil, warnings, err
	}

	// 5) ítems con título y precio congelados en este instante
	stmt, err := tx.PrepareContext(ctx, `
    INSERT INTO order_items(order_id, item_type, item_id, title, unit_cents, qty, line_cents, size_bytes)
    VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return nil, warnings, err
	}
	defer stmt.Close()
	for _, ln := range lines {
		if _, err := stmt.ExecContext(ctx,
			o.ID, ln.ItemType, ln.ItemID, ln.Title, ln.UnitCents, ln.Qty, ln.LineCents, ln.SizeBytes); err != nil {
			return nil, warnings, err
		}
		o.Items = append(o.Items, OrderItem{
			OrderID:   o.ID,
			ItemType:  ln.ItemType,
			ItemID:    ln.ItemID,
			Title:     ln.Title,
			UnitCents: ln.UnitCents,
			Qty:       ln.Qty,
			LineCents: ln.LineCents,
			SizeBytes: ln.SizeBytes,
		})
	}

	// 6) consumo del cupón: registro de uso + incremento atómico con guarda;
	// si otro checkout agotó el límite entre el SELECT y este UPDATE, el
	// RowsAffected lo delata y la orden entera se revierte
	if coupon != nil {
		usage := CouponUsage{
			CouponID:      coupon.Coupon.ID,
			UserID:        req.UserID,
			OrderID:       o.ID,
			DiscountCents: coupon.DiscountCents,
			UsedUnix:      now.Unix(),
		}
		if _, err := tx.ExecContext(ctx, `
      INSERT INTO coupon_usages(coupon_id, user_id, order_id, discount_cents, used_unix)
      VALUES(?,?,?,?,?)`,
			usage.CouponID, usage.UserID, usage.OrderID, usage.DiscountCents, usage.UsedUnix); err != nil {
			return nil, warnings, err
		}
		upd, err := tx.ExecContext(ctx, `
      UPDATE coupons SET used_count = used_count + 1
      WHERE id=? AND (usage_limit IS NULL OR used_count < usage_limit)`,
			coupon.Coupon.ID)
		if err != nil {
			return nil, warnings, err
		}
		affected, err := upd.RowsAffected()
		if err != nil {
			return nil, warnings, err
		}
		if affected == 0 {
			return nil, warnings, &CouponError{Kind: CouponUsageLimitReached, Message: "this coupon has reached its usage limit"}
		}
	}

	// 7) limpiar el carrito
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=?`, req.UserID); err != nil {
		return nil, warnings, err
	}

	// 8) commit
	if err := tx.Commit(); err != nil {
		return nil, warnings, err
	}
	return &o, warnings, nil
}
