package opqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is a durable offline operation queue. It owns a bounded,
// priority-ordered live store and a bounded failed-item store, persists both
// through the configured Storage, and processes ready entries in sequential
// batches whenever the connectivity source reports online.
//
// All methods are safe for concurrent use.
type Queue struct {
	cfg  Config
	exec Executors

	mu     sync.Mutex
	store  *store
	failed *failedStore
	// active is the single-flight guard for Process.
	active  bool
	metrics Metrics
}

// New constructs a Queue with defaults and optional settings. The API, State
// and Storage executors are required.
func New(exec Executors, opts ...Option) *Queue {
	if exec.API == nil {
		panic("opqueue: nil APIExecutor")
	}
	if exec.State == nil {
		panic("opqueue: nil StateExecutor")
	}
	if exec.Storage == nil {
		panic("opqueue: nil StorageExecutor")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Queue{
		cfg:    cfg,
		exec:   exec.withDefaults(),
		store:  newStore(cfg.MaxQueueSize),
		failed: newFailedStore(cfg.FailedLimit),
	}
}

// Enqueue validates op and admits it with the given priority (higher runs
// first; equal priorities run oldest first). When the store is full the
// lowest-priority entry is evicted to make room. Validation failures are
// returned immediately and nothing is admitted.
//
// With AutoProcess enabled and the network online, a processing run is
// triggered in the background.
func (q *Queue) Enqueue(ctx context.Context, op Operation, priority int) (uuid.UUID, error) {
	if op == nil {
		return uuid.Nil, ErrNilOperation
	}
	if err := op.Validate(); err != nil {
		return uuid.Nil, err
	}

	entry := &Entry{
		ID:         uuid.New(),
		Operation:  op,
		Priority:   priority,
		EnqueuedAt: q.cfg.Clock.Now(),
		Status:     StatusPending,
	}

	q.mu.Lock()
	evicted := q.store.admit(entry)
	q.metrics.TotalQueued++
	size := q.store.len()
	q.mu.Unlock()

	if evicted != nil {
		q.cfg.Logger.Warn("queue full; evicted lowest-priority entry",
			"id", evicted.ID, "priority", evicted.Priority)
		q.cfg.Events.Publish(Event{Name: EventItemRemoved, Payload: map[string]any{
			"id":       evicted.ID.String(),
			"priority": evicted.Priority,
			"reason":   "queue_full",
		}})
	}
	q.cfg.Events.Publish(Event{Name: EventEnqueued, Payload: map[string]any{
		"id":       entry.ID.String(),
		"kind":     string(op.Kind()),
		"priority": priority,
		"size":     size,
	}})

	q.saveQueue(ctx)

	if q.cfg.AutoProcess && q.cfg.Connectivity.Online() {
		go func() {
			_, _ = q.Process(ctx, false)
		}()
	}

	return entry.ID, nil
}

// Dequeue removes the entry with the given id regardless of its status. The
// second result is false when no such entry exists.
func (q *Queue) Dequeue(ctx context.Context, id uuid.UUID) (Entry, bool) {
	q.mu.Lock()
	removed, ok := q.store.remove(id)
	q.mu.Unlock()
	if !ok {
		return Entry{}, false
	}

	q.cfg.Events.Publish(Event{Name: EventDequeued, Payload: map[string]any{
		"id": id.String(),
	}})
	q.saveQueue(ctx)

	return *removed, true
}

// Peek returns copies of the first n entries in queue order.
func (q *Queue) Peek(n int) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.peek(n)
}

// Clear removes all live entries and returns them.
func (q *Queue) Clear(ctx context.Context) []Entry {
	q.mu.Lock()
	removed := q.store.clear()
	q.mu.Unlock()

	q.cfg.Events.Publish(Event{Name: EventCleared, Payload: map[string]any{
		"count": len(removed),
	}})
	q.saveQueue(ctx)

	return removed
}

// Len returns the number of live entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.len()
}

// Pending returns the number of entries awaiting execution (pending or
// retrying).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, e := range q.store.entries {
		if e.Status == StatusPending || e.Status == StatusRetrying {
			count++
		}
	}

	return count
}

// Metrics returns a copy of the current counters.
func (q *Queue) Metrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.metrics
}

// Failed returns up to limit permanently failed items, most recent first.
// limit <= 0 returns all.
func (q *Queue) Failed(limit int) []FailedItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.failed.list(limit)
}

// RetryFailed moves the failed item with the given entry id back into the
// live queue as a fresh pending entry with a reset attempt budget. It
// reports false when no such item exists.
func (q *Queue) RetryFailed(ctx context.Context, id uuid.UUID) bool {
	q.mu.Lock()
	item, ok := q.failed.take(id)
	if !ok {
		q.mu.Unlock()

		return false
	}

	entry := item.Entry
	entry.Status = StatusPending
	entry.Attempts = 0
	entry.RetryAfter = time.Time{}
	entry.LastAttempt = time.Time{}
	entry.LastError = ""
	entry.EnqueuedAt = q.cfg.Clock.Now()
	evicted := q.store.admit(&entry)
	q.mu.Unlock()

	if evicted != nil {
		q.cfg.Events.Publish(Event{Name: EventItemRemoved, Payload: map[string]any{
			"id":       evicted.ID.String(),
			"priority": evicted.Priority,
			"reason":   "queue_full",
		}})
	}
	q.cfg.Events.Publish(Event{Name: EventItemRetried, Payload: map[string]any{
		"id": id.String(),
	}})

	q.saveQueue(ctx)
	q.saveFailed(ctx)

	return true
}

func (q *Queue) isActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.active
}
