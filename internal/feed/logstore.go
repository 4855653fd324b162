package feed

import (
	"sort"
	"sync"
)

// DefaultPageSize matches the server's default page length.
const DefaultPageSize = 30

// MutationKind selects how ApplyMutation changes the store.
type MutationKind int

const (
	MutationFavorite MutationKind = iota
	MutationDelete
	MutationBulkDelete
)

// Mutation is a server-confirmed change to apply locally.
type Mutation struct {
	Kind       MutationKind
	ID         string   // favorite, delete
	IsFavorite bool     // favorite
	IDs        []string // bulk delete: confirmed ids only
}

// LogStore is the in-memory source of truth for known records. Records are
// kept newest first: live pushes go to the front, history pages to the back.
type LogStore struct {
	mu sync.Mutex

	records  []LogRecord
	index    map[string]int
	pageSize int
	offset   int
	hasMore  bool
	loading  bool
}

func NewLogStore(pageSize int) *LogStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &LogStore{
		index:    make(map[string]int),
		pageSize: pageSize,
		hasMore:  true,
	}
}

func (s *LogStore) PageSize() int { return s.pageSize }

func (s *LogStore) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

// IngestPage appends a page of older history. It is a no-op returning false
// when the feed is exhausted or a fetch is in flight.
func (s *LogStore) IngestPage(records []LogRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasMore || s.loading {
		return false
	}
	s.ingestPageLocked(records, len(records))
	return true
}

// ingestPageLocked appends records; n is the page length as served, which
// may exceed len(records) when malformed items were dropped.
func (s *LogStore) ingestPageLocked(records []LogRecord, n int) {
	for _, r := range records {
		if _, ok := s.index[r.ID]; ok {
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	if n < len(records) {
		n = len(records)
	}
	s.offset += n
	if n < s.pageSize {
		s.hasMore = false
	}
}

// BeginFetch claims the single page-fetch slot and returns the offset to
// request. ok is false when there is nothing more to load or another fetch
// holds the slot.
func (s *LogStore) BeginFetch() (offset int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasMore || s.loading {
		return 0, false
	}
	s.loading = true
	return s.offset, true
}

// FinishFetch applies the page returned for the claimed fetch and releases
// the slot. served is the number of items the server returned.
func (s *LogStore) FinishFetch(records []LogRecord, served int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		return
	}
	s.loading = false
	if s.hasMore {
		s.ingestPageLocked(records, served)
	}
}

// AbortFetch releases the slot without touching records, offset or hasMore,
// so the next trigger retries the same page.
func (s *LogStore) AbortFetch() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// IngestLive puts a pushed record at the front. A known id is moved to the
// front with the new attributes.
func (s *LogStore) IngestLive(r LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[r.ID]; ok {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
	s.records = append([]LogRecord{r}, s.records...)
	s.reindex()
}

// ApplyMutation reflects a confirmed server change. It reports whether any
// record changed.
func (s *LogStore) ApplyMutation(m Mutation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Kind {
	case MutationFavorite:
		i, ok := s.index[m.ID]
		if !ok {
			return false
		}
		s.records[i].IsFavorite = m.IsFavorite
		return true

	case MutationDelete:
		i, ok := s.index[m.ID]
		if !ok {
			return false
		}
		s.records = append(s.records[:i], s.records[i+1:]...)
		s.reindex()
		return true

	case MutationBulkDelete:
		drop := make(map[string]struct{}, len(m.IDs))
		for _, id := range m.IDs {
			drop[id] = struct{}{}
		}
		kept := s.records[:0]
		removed := 0
		for _, r := range s.records {
			if _, ok := drop[r.ID]; ok {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		s.records = kept
		s.reindex()
		return removed > 0
	}
	return false
}

// Reset empties the store for an explicit full reload.
func (s *LogStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	s.offset = 0
	s.hasMore = true
	s.loading = false
}

// Records returns a copy of the records in store order.
func (s *LogStore) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *LogStore) Get(id string) (LogRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return LogRecord{}, false
	}
	return s.records[i], true
}

func (s *LogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *LogStore) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *LogStore) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *LogStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// DistinctAppNames returns the non-empty source apps, sorted.
func (s *LogStore) DistinctAppNames() []string {
	counts := s.AppCounts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppCounts maps each non-empty source app to its record count.
func (s *LogStore) AppCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range s.records {
		if r.SourceApp == "" {
			continue
		}
		counts[r.SourceApp]++
	}
	return counts
}
