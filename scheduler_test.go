package opqueue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func makeEntry(priority int, enqueuedAt time.Time, status Status) *Entry {
	return &Entry{
		ID:         uuid.New(),
		Operation:  APICall{Method: "GET", URL: "https://example.com"},
		Priority:   priority,
		EnqueuedAt: enqueuedAt,
		Status:     status,
	}
}

func TestNextBatchOrdering(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	s := newStore(10)
	// Enqueued in order with priorities 1, 5, 1.
	first := makeEntry(1, base, StatusPending)
	second := makeEntry(5, base.Add(time.Second), StatusPending)
	third := makeEntry(1, base.Add(2*time.Second), StatusPending)
	for _, e := range []*Entry{first, second, third} {
		s.admit(e)
	}

	batch := s.nextBatch(10, base.Add(time.Minute))
	if len(batch) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(batch))
	}
	if batch[0].ID != second.ID {
		t.Fatalf("expected the priority-5 entry first")
	}
	if batch[1].ID != first.ID || batch[2].ID != third.ID {
		t.Fatalf("expected equal priorities in enqueue order")
	}

	for i := 1; i < len(batch); i++ {
		prev, cur := batch[i-1], batch[i]
		if cur.Priority > prev.Priority {
			t.Fatalf("batch not in non-increasing priority order at %d", i)
		}
		if cur.Priority == prev.Priority && cur.EnqueuedAt.Before(prev.EnqueuedAt) {
			t.Fatalf("equal-priority entries not in non-decreasing age order at %d", i)
		}
	}
}

func TestNextBatchFiltersByReadiness(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	s := newStore(10)

	pending := makeEntry(0, base, StatusPending)
	processing := makeEntry(9, base, StatusProcessing)
	retryElapsed := makeEntry(0, base, StatusRetrying)
	retryElapsed.RetryAfter = base.Add(5 * time.Second)
	retryWaiting := makeEntry(0, base, StatusRetrying)
	retryWaiting.RetryAfter = base.Add(time.Hour)
	for _, e := range []*Entry{pending, processing, retryElapsed, retryWaiting} {
		s.admit(e)
	}

	now := base.Add(5 * time.Second)
	batch := s.nextBatch(10, now)
	if len(batch) != 2 {
		t.Fatalf("expected 2 ready entries, got %d", len(batch))
	}
	for _, e := range batch {
		if e.ID == processing.ID {
			t.Fatalf("a processing entry must never be selected")
		}
		if e.ID == retryWaiting.ID {
			t.Fatalf("an unready retrying entry must never be selected")
		}
	}
}

func TestNextBatchHonorsSize(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	s := newStore(10)
	for i := 0; i < 7; i++ {
		s.admit(makeEntry(i, base.Add(time.Duration(i)*time.Second), StatusPending))
	}

	batch := s.nextBatch(3, base.Add(time.Minute))
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
	// Highest priorities come first.
	if batch[0].Priority != 6 || batch[1].Priority != 5 || batch[2].Priority != 4 {
		t.Fatalf("expected priorities 6,5,4, got %d,%d,%d",
			batch[0].Priority, batch[1].Priority, batch[2].Priority)
	}
}

func TestStoreEvictionKeepsHighestPriorities(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	s := newStore(3)
	for i := 0; i < 6; i++ {
		evicted := s.admit(makeEntry(i, base.Add(time.Duration(i)*time.Second), StatusPending))
		if s.len() > 3 {
			t.Fatalf("store exceeded its bound")
		}
		if evicted != nil {
			for _, kept := range s.entries {
				if evicted.Priority > kept.Priority {
					t.Fatalf("evicted priority %d above retained %d",
						evicted.Priority, kept.Priority)
				}
			}
		}
	}
}
