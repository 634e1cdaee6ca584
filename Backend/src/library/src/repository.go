package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000"
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
CREATE TABLE IF NOT EXISTS library_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  item_type TEXT NOT NULL,
  item_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  download_count INTEGER NOT NULL DEFAULT 0,
  token TEXT NOT NULL,
  granted_unix INTEGER NOT NULL,
  UNIQUE(user_id, item_type, item_id)
);
CREATE INDEX IF NOT EXISTS idx_library_user ON library_items(user_id);
`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

// GrantOrder inserta una entrada por ítem de la orden completada. Idempotente:
// un evento re-entregado no duplica titularidad (ON CONFLICT DO NOTHING).
func (r *Repository) GrantOrder(ctx context.Context, p OrderStatusChangedPayload) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
    INSERT INTO library_items(user_id, item_type, item_id, title, size_bytes, token, granted_unix)
    VALUES(?,?,?,?,?,?,?)
    ON CONFLICT(user_id, item_type, item_id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowUnix()
	for _, it := range p.Items {
		if _, err := stmt.ExecContext(ctx,
			p.UserID, it.ItemType, it.ItemID, it.Title, it.SizeBytes, uuid.NewString(), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]LibraryItem, error) {
	rows, err := r.db.QueryContext(ctx, `
    SELECT id, user_id, item_type, item_id, title, size_bytes, download_count, token, granted_unix
    FROM library_items WHERE user_id=? ORDER BY granted_unix DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LibraryItem
	for rows.Next() {
		var it LibraryItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ItemType, &it.ItemID, &it.Title,
			&it.SizeBytes, &it.DownloadCount, &it.Token, &it.GrantedUnix); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// IssueToken rota el token de descarga y cuenta la descarga
func (r *Repository) IssueToken(ctx context.Context, itemID, userID int64) (string, error) {
	token := uuid.NewString()
	res, err := r.db.ExecContext(ctx, `
    UPDATE library_items SET token=?, download_count=download_count+1
    WHERE id=? AND user_id=?`, token, itemID, userID)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrNotFound
	}
	return token, nil
}
