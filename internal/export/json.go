package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/sadopc/alertlog/internal/feed"
)

// ErrNothingToBackup is returned when there are no records to write.
var ErrNothingToBackup = errors.New("nothing to back up")

const (
	backupPrefix    = "logs_backup_"
	backupTimestamp = "20060102_150405"
	zstdExt         = ".zst"
)

// BackupName returns the file name for a backup taken at now.
func BackupName(now time.Time, compress bool) string {
	name := backupPrefix + now.Format(backupTimestamp) + ".json"
	if compress {
		name += zstdExt
	}
	return name
}

// WriteBackup writes records as an indented JSON array into dir and returns
// the file path. With compress the file is zstd-compressed.
func WriteBackup(records []feed.LogRecord, dir string, now time.Time, compress bool) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToBackup
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, BackupName(now, compress))

	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return "", fmt.Errorf("zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}
