package feed

import "sort"

// Selection tracks the ids picked for bulk actions while selection mode is
// on.
type Selection struct {
	active   bool
	selected map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{selected: make(map[string]struct{})}
}

func (s *Selection) Active() bool { return s.active }

// Enter turns selection mode on and clears the selection.
func (s *Selection) Enter() {
	s.active = true
	s.clear()
}

// Exit turns selection mode off and clears the selection.
func (s *Selection) Exit() {
	s.active = false
	s.clear()
}

func (s *Selection) clear() {
	s.selected = make(map[string]struct{})
}

// Toggle flips membership of id. Outside selection mode it does nothing.
func (s *Selection) Toggle(id string) {
	if !s.active {
		return
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return
	}
	s.selected[id] = struct{}{}
}

// SelectAllVisible clears the selection when every visible id is already
// selected, otherwise replaces it with exactly the visible ids.
func (s *Selection) SelectAllVisible(visible []string) {
	if !s.active {
		return
	}
	all := len(visible) > 0
	for _, id := range visible {
		if _, ok := s.selected[id]; !ok {
			all = false
			break
		}
	}
	s.clear()
	if all {
		return
	}
	for _, id := range visible {
		s.selected[id] = struct{}{}
	}
}

func (s *Selection) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

func (s *Selection) Count() int { return len(s.selected) }

// IDs returns the selected ids sorted.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove drops ids, typically those the server confirmed deleted.
func (s *Selection) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.selected, id)
	}
}

// Prune drops selected ids that are no longer visible.
func (s *Selection) Prune(visible []string) {
	keep := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		keep[id] = struct{}{}
	}
	for id := range s.selected {
		if _, ok := keep[id]; !ok {
			delete(s.selected, id)
		}
	}
}
