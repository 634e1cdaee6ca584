package main

import (
	"context"
	"fmt"
)

// snapshotCart resuelve las líneas del carrito contra el catálogo vigente.
// El precio jamás se guarda en el carrito: siempre se lee en este momento,
// así un precio cambiado no puede comprarse al valor viejo. Un ítem inactivo
// o borrado del catálogo sale del resultado con una advertencia, no con un
// error: el checkout sigue con las líneas válidas restantes.
func snapshotCart(ctx context.Context, q querier, userID int64) ([]PricedLineItem, []string, error) {
	lines, err := getCartLines(ctx, q, userID)
	if err != nil {
		return nil, nil, err
	}

	var priced []PricedLineItem
	var warnings []string
	for _, ln := range lines {
		it, err := resolveActiveItem(ctx, q, ln.ItemType, ln.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if it == nil {
			warnings = append(warnings,
				fmt.Sprintf("%s #%d is no longer available and was removed from this order", ln.ItemType, ln.ItemID))
			continue
		}
		priced = append(priced, PricedLineItem{
			ItemType:  ln.ItemType,
			ItemID:    ln.ItemID,
			Title:     it.Title,
			UnitCents: it.PriceCents,
			Qty:       ln.Qty,
			LineCents: it.PriceCents * int64(ln.Qty),
			SizeBytes: it.SizeBytes,
		})
	}
	return priced, warnings, nil
}

// SnapshotCart es la vista de solo lectura (página de carrito, preview de
// cupón); CommitOrder hace su propio snapshot dentro de la transacción.
func (r *Repository) SnapshotCart(ctx context.Context, userID int64) ([]PricedLineItem, []string, error) {
	return snapshotCart(ctx, r.db, userID)
}
