package main

// ComposeTotals combina subtotal, descuento, impuesto y envío. Función pura.
// El total se fija en 0 si una configuración patológica lo dejara negativo
// (EvaluateCoupon ya limita el descuento al subtotal).
func ComposeTotals(lines []PricedLineItem, discountCents int64, taxRate float64, shippingCents int64) OrderTotals {
	var subtotal int64
	for _, ln := range lines {
		subtotal += ln.LineCents
	}
	tax := roundCents(float64(subtotal) * taxRate)
	total := subtotal - discountCents + tax + shippingCents
	if total < 0 {
		total = 0
	}
	return OrderTotals{
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		TaxCents:      tax,
		ShippingCents: shippingCents,
		TotalCents:    total,
	}
}
