package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCentsHalfUp(t *testing.T) {
	assert.Equal(t, int64(2), roundCents(2.4))
	assert.Equal(t, int64(3), roundCents(2.5))
	assert.Equal(t, int64(3), roundCents(2.6))
	assert.Equal(t, int64(0), roundCents(0))
	// 10% de $89.97 = 899.7 centavos
	assert.Equal(t, int64(900), roundCents(8997*10.0/100))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$25.00", formatCents(2500))
	assert.Equal(t, "$0.05", formatCents(5))
	assert.Equal(t, "$1,234.56", formatCents(123456))
}
