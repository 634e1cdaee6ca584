package main

// Motivos de rechazo de cupón; el primer chequeo que falla gana
const (
	CouponInvalidCode       = "invalid_code"
	CouponInvalidOrExpired  = "invalid_or_expired"
	CouponBelowMinimum      = "below_minimum"
	CouponUsageLimitReached = "usage_limit_reached"
	CouponAlreadyUsed       = "already_used_by_user"
)

// CouponError es un error de regla de negocio: el caller muestra Message tal
// cual al usuario y no reintenta. Nunca representa una falla de infraestructura.
type CouponError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *CouponError) Error() string { return e.Message }

const (
	CheckoutEmptyCart         = "empty_cart"
	CheckoutInvalidInput      = "invalid_input"
	CheckoutInvalidTransition = "invalid_transition"
)

type CheckoutError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *CheckoutError) Error() string { return e.Message }
