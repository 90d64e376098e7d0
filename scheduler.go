package opqueue

import "time"

// nextBatch returns up to size entries eligible to run at now: pending
// entries, and retrying entries whose delay has elapsed. Entries marked
// processing are never selected, which prevents re-entrant execution of an
// in-flight entry. The store is kept sorted, so the batch inherits the
// priority-then-age order.
func (s *store) nextBatch(size int, now time.Time) []*Entry {
	batch := make([]*Entry, 0, size)
	for _, e := range s.entries {
		if len(batch) == size {
			break
		}
		switch e.Status {
		case StatusPending:
			batch = append(batch, e)
		case StatusRetrying:
			if !e.RetryAfter.After(now) {
				batch = append(batch, e)
			}
		}
	}

	return batch
}
