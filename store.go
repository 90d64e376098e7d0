package opqueue

import (
	"sort"

	"github.com/google/uuid"
)

// store is the bounded, priority-ordered live entry collection. It is not
// safe for concurrent use; the owning Queue serializes access.
type store struct {
	max     int
	entries []*Entry
}

func newStore(max int) *store {
	return &store{max: max}
}

func (s *store) len() int {
	return len(s.entries)
}

// admit appends e, evicting the current lowest-priority entry first when the
// store is full. The evicted entry (nil when none) is returned so the queue
// can notify. Admission always re-sorts.
func (s *store) admit(e *Entry) *Entry {
	var evicted *Entry
	if len(s.entries) >= s.max && len(s.entries) > 0 {
		// Sorted order puts the lowest priority last; among equal
		// priorities the newest entry goes.
		evicted = s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, e)
	s.sort()

	return evicted
}

// sort orders entries by priority descending, then enqueue time ascending.
// The sort is stable so same-priority, same-instant entries keep insertion
// order.
func (s *store) sort() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		return a.EnqueuedAt.Before(b.EnqueuedAt)
	})
}

func (s *store) byID(id uuid.UUID) (*Entry, bool) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}

	return nil, false
}

// remove deletes the entry with the given id regardless of status.
func (s *store) remove(id uuid.UUID) (*Entry, bool) {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)

			return e, true
		}
	}

	return nil, false
}

// peek returns copies of the first n entries in current order.
func (s *store) peek(n int) []Entry {
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for _, e := range s.entries[:n] {
		out = append(out, *e)
	}

	return out
}

// clear removes and returns all entries.
func (s *store) clear() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.entries = nil

	return out
}

// replaceAll installs a restored entry set and re-sorts.
func (s *store) replaceAll(entries []*Entry) {
	s.entries = entries
	s.sort()
}
