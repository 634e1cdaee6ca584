package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type CouponResult struct {
	Coupon        *Coupon
	DiscountCents int64
}

// CouponStore lo implementan Repository (lecturas sueltas, p.ej. preview en la
// UI) y el store transaccional que usa CommitOrder para re-validar dentro de
// la misma transacción que consume el uso.
type CouponStore interface {
	FindActiveCoupon(ctx context.Context, code string, now time.Time) (*Coupon, error)
	CountUsage(ctx context.Context, couponID, userID int64) (int64, error)
}

// EvaluateCoupon aplica las reglas en orden estricto y calcula el descuento.
// No tiene efectos: puede llamarse cuantas veces se quiera sin consumir usos;
// el consumo ocurre únicamente en CommitOrder, que vuelve a ejecutar estos
// mismos chequeos dentro de la transacción.
func EvaluateCoupon(ctx context.Context, store CouponStore, code string, subtotalCents int64, userID int64, now time.Time) (*CouponResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &CouponError{Kind: CouponInvalidCode, Message: "coupon code is required"}
	}

	c, err := store.FindActiveCoupon(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &CouponError{Kind: CouponInvalidOrExpired, Message: "invalid or expired coupon code"}
	}

	if subtotalCents < c.MinOrderCents {
		return nil, &CouponError{
			Kind:    CouponBelowMinimum,
			Message: fmt.Sprintf("order total must be at least %s to use this coupon", formatCents(c.MinOrderCents)),
		}
	}

	if c.UsageLimit.Valid && c.UsedCount >= c.UsageLimit.Int64 {
		return nil, &CouponError{Kind: CouponUsageLimitReached, Message: "this coupon has reached its usage limit"}
	}

	used, err := store.CountUsage(ctx, c.ID, userID)
	if err != nil {
		return nil, err
	}
	if used > 0 {
		return nil, &CouponError{Kind: CouponAlreadyUsed, Message: "you have already used this coupon"}
	}

	var raw int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		raw = roundCents(float64(subtotalCents) * c.DiscountValue / 100)
		if c.MaxDiscountCents.Valid && raw > c.MaxDiscountCents.Int64 {
			raw = c.MaxDiscountCents.Int64
		}
	case DiscountTypeFixed:
		raw = roundCents(c.DiscountValue * 100)
	default:
		return nil, &CouponError{Kind: CouponInvalidOrExpired, Message: "invalid or expired coupon code"}
	}

	// El descuento nunca supera el subtotal
	if raw > subtotalCents {
		raw = subtotalCents
	}
	if raw < 0 {
		raw = 0
	}
	return &CouponResult{Coupon: c, DiscountCents: raw}, nil
}
