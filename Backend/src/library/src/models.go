package main

import "time"

// LibraryItem es un activo digital comprado que el usuario puede descargar.
// La entrega del archivo en sí es del file store externo; acá solo viven la
// titularidad y el token de descarga vigente.
type LibraryItem struct {
	ID            int64  `db:"id" json:"id"`
	UserID        int64  `db:"user_id" json:"user_id"`
	ItemType      string `db:"item_type" json:"item_type"`
	ItemID        int64  `db:"item_id" json:"item_id"`
	Title         string `db:"title" json:"title"`
	SizeBytes     int64  `db:"size_bytes" json:"size_bytes"`
	Size          string `db:"-" json:"size"` // legible, p.ej. "120 MB"
	DownloadCount int64  `db:"download_count" json:"download_count"`
	Token         string `db:"token" json:"-"`
	GrantedUnix   int64  `db:"granted_unix" json:"granted_unix"`
}

func nowUnix() int64 { return time.Now().Unix() }
