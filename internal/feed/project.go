package feed

import (
	"strings"
	"time"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	dateLayout     = "2006-01-02"
)

// Filter is the view-side filter and search state. The zero value shows
// everything.
type Filter struct {
	Category      Category
	FavoritesOnly bool
	AppName       string
	Keyword       string
}

// IsZero reports whether the filter lets every record through.
func (f Filter) IsZero() bool {
	return f.Category == CategoryAll && !f.FavoritesOnly && f.AppName == "" && strings.TrimSpace(f.Keyword) == ""
}

// Match applies all predicates of f to r.
func (f Filter) Match(r LogRecord) bool {
	if f.Category != CategoryAll && r.Category != f.Category {
		return false
	}
	if f.FavoritesOnly && !r.IsFavorite {
		return false
	}
	if f.AppName != "" && r.SourceApp != f.AppName {
		return false
	}
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Content), kw) ||
		strings.Contains(strings.ToLower(r.SourceApp), kw) ||
		strings.Contains(strings.ToLower(string(r.Category)), kw)
}

// Section is a labeled run of records for display.
type Section struct {
	Label   string
	Records []LogRecord
}

// DayLabel names the calendar day of t relative to now, in now's location.
func DayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	y, m, d := t.Date()
	ny, nm, nd := now.Date()
	if y == ny && m == nm && d == nd {
		return LabelToday
	}
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if y == yy && m == ym && d == yd {
		return LabelYesterday
	}
	return t.Format(dateLayout)
}

// Project filters records and groups them by creation day. Sections appear
// in the order their label is first met while scanning records, and records
// keep their input order.
func Project(records []LogRecord, f Filter, now time.Time) []Section {
	var sections []Section
	pos := make(map[string]int)
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		label := DayLabel(r.CreatedAt, now)
		i, ok := pos[label]
		if !ok {
			i = len(sections)
			pos[label] = i
			sections = append(sections, Section{Label: label})
		}
		sections[i].Records = append(sections[i].Records, r)
	}
	return sections
}

// VisibleIDs flattens sections into ids in display order.
func VisibleIDs(sections []Section) []string {
	var ids []string
	for _, s := range sections {
		for _, r := range s.Records {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
