package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lines(cents ...int64) []PricedLineItem {
	var out []PricedLineItem
	for _, c := range cents {
		out = append(out, PricedLineItem{Qty: 1, UnitCents: c, LineCents: c})
	}
	return out
}

func TestComposeTotalsArithmetic(t *testing.T) {
	// subtotal=89.97, descuento 10% con tope $5 => 5.00, tax=0, envío=0 => 84.97
	got := ComposeTotals(lines(2999, 2999, 2999), 500, 0, 0)
	assert.Equal(t, int64(8997), got.SubtotalCents)
	assert.Equal(t, int64(500), got.DiscountCents)
	assert.Equal(t, int64(0), got.TaxCents)
	assert.Equal(t, int64(8497), got.TotalCents)
}

func TestComposeTotalsTaxAndShipping(t *testing.T) {
	// 8% sobre $50.00 = $4.00
	got := ComposeTotals(lines(5000), 0, 0.08, 299)
	assert.Equal(t, int64(400), got.TaxCents)
	assert.Equal(t, int64(5699), got.TotalCents)

	// redondeo half-up del impuesto: 8% sobre $10.07 = 80.56 -> 81
	got = ComposeTotals(lines(1007), 0, 0.08, 0)
	assert.Equal(t, int64(81), got.TaxCents)
}

func TestComposeTotalsNeverNegative(t *testing.T) {
	got := ComposeTotals(lines(1000), 5000, 0, 0)
	assert.Equal(t, int64(0), got.TotalCents)
}

func TestComposeTotalsEmpty(t *testing.T) {
	got := ComposeTotals(nil, 0, 0.08, 0)
	assert.Equal(t, int64(0), got.SubtotalCents)
	assert.Equal(t, int64(0), got.TotalCents)
}
