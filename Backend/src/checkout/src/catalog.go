package main

import (
	"context"
	"database/sql"
	"fmt"
)

// El catálogo vive en una tabla por tipo de ítem; ninguna FK cruza tipos, así
// que la resolución se despacha por item_type hacia la consulta del variante.

type CatalogItem struct {
	ItemType   string `json:"item_type"`
	ItemID     int64  `json:"item_id"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	SizeBytes  int64  `json:"size_bytes"`
}

// resolveActiveItem devuelve (nil, nil) si el ítem no existe o está inactivo:
// para el snapshot eso es una advertencia, no un error.
func resolveActiveItem(ctx context.Context, q querier, itemType string, itemID int64) (*CatalogItem, error) {
	var query string
	switch itemType {
	case ItemTypeBook:
		query = `SELECT title, price_cents, size_bytes FROM books WHERE id=? AND is_active=1`
	case ItemTypeProject:
		query = `SELECT title, price_cents, size_bytes FROM projects WHERE id=? AND is_active=1`
	case ItemTypeGame:
		query = `SELECT title, price_cents, size_bytes FROM games WHERE id=? AND is_active=1`
	default:
		return nil, fmt.Errorf("unknown item type %q", itemType)
	}
	it := CatalogItem{ItemType: itemType, ItemID: itemID}
	err := q.QueryRowContext(ctx, query, itemID).Scan(&it.Title, &it.PriceCents, &it.SizeBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ResolveActiveItem es la vía de solo lectura (listados, cache de la UI).
// El snapshot del checkout usa resolveActiveItem directo sobre la transacción
// para que el precio sea siempre el vigente.
func (r *Repository) ResolveActiveItem(ctx context.Context, itemType string, itemID int64) (*CatalogItem, error) {
	return resolveActiveItem(ctx, r.db, itemType, itemID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (r *Repository) ListCatalog(ctx context.Context, itemType string, page, pageSize int) ([]CatalogItem, error) {
	var query string
	switch itemType {
	case ItemTypeBook:
		query = `SELECT id, title, price_cents, size_bytes FROM books WHERE is_active=1 ORDER BY id DESC LIMIT ? OFFSET ?`
	case ItemTypeProject:
		query = `SELECT id, title, price_cents, size_bytes FROM projects WHERE is_active=1 ORDER BY id DESC LIMIT ? OFFSET ?`
	case ItemTypeGame:
		query = `SELECT id, title, price_cents, size_bytes FROM games WHERE is_active=1 ORDER BY id DESC LIMIT ? OFFSET ?`
	default:
		return nil, fmt.Errorf("unknown item type %q", itemType)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	rows, err := r.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogItem
	for rows.Next() {
		it := CatalogItem{ItemType: itemType}
		if err := rows.Scan(&it.ItemID, &it.Title, &it.PriceCents, &it.SizeBytes); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Seed de catálogo y cupones para pruebas locales
func (r *Repository) Seed(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	items := []struct {
		table string
		rows  [][]any
	}{
		{"books", [][]any{
			{1, "Clean Architecture in Practice", 2999, 4 << 20},
			{2, "SQL for Storefronts", 1999, 2 << 20},
		}},
		{"projects", [][]any{
			{1, "Inventory Dashboard Starter", 4999, 18 << 20},
		}},
		{"games", [][]any{
			{1, "Pixel Dungeon Kit", 3999, 120 << 20},
		}},
	}
	for _, grp := range items {
		for _, v := range grp.rows {
			if _, err := tx.ExecContext(ctx, `
        INSERT INTO `+grp.table+`(id, title, price_cents, size_bytes)
        VALUES(?,?,?,?) ON CONFLICT(id) DO NOTHING`, v...); err != nil {
				return err
			}
		}
	}

	far := nowUnix() + 365*24*3600
	if _, err := tx.ExecContext(ctx, `
    INSERT INTO coupons(code, discount_type, discount_value, min_order_cents,
                        max_discount_cents, usage_limit, valid_from_unix, valid_until_unix)
    VALUES('WELCOME10','percentage',10,0,NULL,NULL,0,?)
    ON CONFLICT(code) DO NOTHING`, far); err != nil {
		return err
	}
	return tx.Commit()
}
