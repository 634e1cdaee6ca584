package main

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Todo el dinero se maneja en centavos (int64); "dos decimales" es exacto.

// roundCents redondea half-up a centavos enteros
func roundCents(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// formatCents imprime un monto como "$1,234.56"
func formatCents(cents int64) string {
	return "$" + humanize.FormatFloat("#,###.##", float64(cents)/100)
}
