package store

import "time"

// Setting keys.
const (
	KeyComposeCategory = "compose_category"
	KeyFilterCategory  = "filter_category"
	KeyFilterFavorites = "filter_favorites"
	KeyFilterApp       = "filter_app"
	KeyConfirmDelete   = "confirm_delete"
	KeyBackupCompress  = "backup_compress"
)

type Setting struct {
	Key   string
	Value string
}

// Backup is one backup file written by the client.
type Backup struct {
	ID          int64
	Path        string
	RecordCount int
	Compressed  bool
	CreatedAt   time.Time
}
