package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformed marks a push message, page item or import file that does not
// have the expected shape.
var ErrMalformed = errors.New("malformed payload")

// Category is the kind of device event. The server may send values outside
// the known set; those are kept as-is.
type Category string

const (
	CategoryAll  Category = ""
	CategoryCall Category = "call"
	CategorySMS  Category = "SMS"
	CategoryApp  Category = "app-notification"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryCall, CategorySMS, CategoryApp}

func (c Category) Label() string {
	switch c {
	case CategoryAll:
		return "All"
	case CategoryCall:
		return "Call"
	case CategorySMS:
		return "SMS"
	case CategoryApp:
		return "App"
	}
	return string(c)
}

// LogRecord is one notification event as known to the client.
type LogRecord struct {
	ID         string
	Category   Category
	Content    string
	SourceApp  string
	OccurredAt time.Time
	CreatedAt  time.Time
	IsFavorite bool
}

type wireRecord struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	AppName    *string `json:"appName"`
	Time       string  `json:"time,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	IsFavorite *bool   `json:"isFavorite,omitempty"`
}

const clockLayout = "15:04:05"

// Zone-less ISO timestamps as produced by Python's datetime.isoformat().
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (r *LogRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}

	rec := LogRecord{
		ID:       w.ID,
		Category: Category(w.Type),
		Content:  w.Content,
	}
	if w.AppName != nil {
		rec.SourceApp = *w.AppName
	}
	if w.IsFavorite != nil {
		rec.IsFavorite = *w.IsFavorite
	}
	if w.CreatedAt != "" {
		t, err := parseTimestamp(w.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: createdAt: %v", ErrMalformed, err)
		}
		rec.CreatedAt = t
	}

	rec.OccurredAt = rec.CreatedAt
	if w.Time != "" {
		if t, err := parseTimestamp(w.Time); err == nil {
			rec.OccurredAt = t
		} else if clock, err := time.Parse(clockLayout, w.Time); err == nil {
			base := rec.CreatedAt
			rec.OccurredAt = time.Date(base.Year(), base.Month(), base.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, base.Location())
		}
	}

	*r = rec
	return nil
}

func (r LogRecord) MarshalJSON() ([]byte, error) {
	app := r.SourceApp
	fav := r.IsFavorite
	w := wireRecord{
		ID:         r.ID,
		Type:       string(r.Category),
		Content:    r.Content,
		AppName:    &app,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
		IsFavorite: &fav,
	}
	if !r.OccurredAt.IsZero() {
		w.Time = r.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// DecodeRecord parses a single LogRecord-shaped JSON object.
func DecodeRecord(data []byte) (LogRecord, error) {
	var r LogRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return LogRecord{}, err
	}
	return r, nil
}
