package opqueue

import "github.com/google/uuid"

// failedStore is the bounded, most-recent-first list of permanently failed
// entries. Like store, access is serialized by the owning Queue.
type failedStore struct {
	limit int
	items []FailedItem
}

func newFailedStore(limit int) *failedStore {
	return &failedStore{limit: limit}
}

// add prepends item, trimming the oldest beyond the limit.
func (f *failedStore) add(item FailedItem) {
	f.items = append([]FailedItem{item}, f.items...)
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
}

// list returns up to limit items, most recent first. limit <= 0 means all.
func (f *failedStore) list(limit int) []FailedItem {
	n := len(f.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]FailedItem, n)
	copy(out, f.items[:n])

	return out
}

// take removes and returns the item with the given entry id.
func (f *failedStore) take(id uuid.UUID) (FailedItem, bool) {
	for i, item := range f.items {
		if item.Entry.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)

			return item, true
		}
	}

	return FailedItem{}, false
}

func (f *failedStore) replaceAll(items []FailedItem) {
	if len(items) > f.limit {
		items = items[:f.limit]
	}
	f.items = items
}
