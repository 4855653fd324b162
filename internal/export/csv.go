package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/alertlog/internal/feed"
)

// WriteCSV writes records, in the given order, as a CSV file at path.
func WriteCSV(records []feed.LogRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// Header
	if err := w.Write([]string{"ID", "Category", "App", "Occurred", "Created", "Favorite", "Content"}); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.ID,
			string(r.Category),
			r.SourceApp,
			formatTime(r.OccurredAt),
			formatTime(r.CreatedAt),
			strconv.FormatBool(r.IsFavorite),
			r.Content,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
