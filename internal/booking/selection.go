package booking

import (
	"sort"

	"github.com/talkademy/booking-api/internal/model"
)

// SelectionEntry is a session the viewer has chosen but not yet
// submitted.  The session data is a snapshot from selection time; any
// staleness (capacity consumed, lead time reached) is resolved by the
// store at submission, not here.
type SelectionEntry struct {
	Key     SessionKey
	Session model.ClassSession
}

// SelectionSet holds one viewer's in-progress multi-session choice.  It
// has set semantics keyed by the stable session key: never two entries
// with the same key.  Insertion order is preserved for display; it
// carries no booking meaning.  A SelectionSet is not safe for concurrent
// use; the owning Service serializes access per viewer.
type SelectionSet struct {
	entries []SelectionEntry
	index   map[SessionKey]struct{}
}

// NewSelectionSet returns an empty selection set.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{index: make(map[SessionKey]struct{})}
}

// Add inserts a session into the set.  The caller presents the status it
// just classified; anything other than AVAILABLE is rejected with
// ErrNotSelectable.  Adding a key that is already present is a no-op.
func (s *SelectionSet) Add(sess model.ClassSession, status Status) error {
	if status != StatusAvailable {
		return ErrNotSelectable
	}
	key := KeyOf(sess)
	if _, ok := s.index[key]; ok {
		return nil
	}
	s.index[key] = struct{}{}
	s.entries = append(s.entries, SelectionEntry{Key: key, Session: sess})
	return nil
}

// Toggle is the primary UI entry point: remove the session when present,
// add it when absent and AVAILABLE.  It reports whether the session is
// in the set after the call.  Two identical toggles return the set to
// its prior membership state.
func (s *SelectionSet) Toggle(sess model.ClassSession, status Status) (selected bool, err error) {
	key := KeyOf(sess)
	if _, ok := s.index[key]; ok {
		s.Remove(key)
		return false, nil
	}
	if err := s.Add(sess, status); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the entry with the given key, if present.
func (s *SelectionSet) Remove(key SessionKey) {
	if _, ok := s.index[key]; !ok {
		return
	}
	delete(s.index, key)
	for i, e := range s.entries {
		if e.Key == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
}

// Clear empties the set.
func (s *SelectionSet) Clear() {
	s.entries = nil
	s.index = make(map[SessionKey]struct{})
}

// Len returns the number of selected sessions.
func (s *SelectionSet) Len() int { return len(s.entries) }

// Contains reports whether the key is currently selected.
func (s *SelectionSet) Contains(key SessionKey) bool {
	_, ok := s.index[key]
	return ok
}

// Entries returns the selected sessions in insertion order.  The slice
// is a copy; mutating it does not affect the set.
func (s *SelectionSet) Entries() []SelectionEntry {
	out := make([]SelectionEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// DateGroup is one calendar day of selected sessions, ordered by start
// time ascending.
type DateGroup struct {
	Date     string           `json:"date"`
	Sessions []SelectionEntry `json:"sessions"`
}

// Grouped returns the selection grouped by calendar date with each
// group's sessions ordered by start time.  It is a derived view computed
// on every call, never a second source of truth.
func (s *SelectionSet) Grouped() []DateGroup {
	byDate := make(map[string][]SelectionEntry)
	for _, e := range s.entries {
		d := e.Session.Date()
		byDate[d] = append(byDate[d], e)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	groups := make([]DateGroup, 0, len(dates))
	for _, d := range dates {
		entries := byDate[d]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Session.StartsAt.Before(entries[j].Session.StartsAt)
		})
		groups = append(groups, DateGroup{Date: d, Sessions: entries})
	}
	return groups
}
