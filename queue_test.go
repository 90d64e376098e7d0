package opqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Publish(event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) byName(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// stubExecutor serves every operation variant, consuming one scripted error
// per call (nil beyond the script).
type stubExecutor struct {
	mu    sync.Mutex
	errs  []error
	calls int
	kinds []Kind
}

func (s *stubExecutor) next(op Operation) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.kinds = append(s.kinds, op.Kind())
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`"ok"`), nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubExecutor) ExecuteAPICall(_ context.Context, op APICall) (json.RawMessage, error) {
	return s.next(op)
}

func (s *stubExecutor) ExecuteStateUpdate(_ context.Context, op StateUpdate) (json.RawMessage, error) {
	return s.next(op)
}

func (s *stubExecutor) ExecuteStorageOp(_ context.Context, op StorageOp) (json.RawMessage, error) {
	return s.next(op)
}

func (s *stubExecutor) ExecuteCustom(_ context.Context, op Custom) (json.RawMessage, error) {
	return s.next(op)
}

func (s *stubExecutor) executors() Executors {
	return Executors{API: s, State: s, Storage: s, Custom: s}
}

func testCall() APICall {
	return APICall{Method: "POST", URL: "https://api.example.com/v1/sync"}
}

func newTestQueue(t *testing.T, exec *stubExecutor, clock Clock, opts ...Option) (*Queue, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	base := []Option{
		WithAutoProcess(false),
		WithClock(clock),
		WithEvents(sink),
	}
	q := New(exec.executors(), append(base, opts...)...)
	return q, sink
}

func TestEnqueueRejectsInvalidOperations(t *testing.T) {
	q, sink := newTestQueue(t, &stubExecutor{}, newFixedClock())
	ctx := context.Background()

	cases := []struct {
		name string
		op   Operation
		err  error
	}{
		{name: "nil operation", op: nil, err: ErrNilOperation},
		{name: "api call without url", op: APICall{Method: "GET"}, err: ErrURLRequired},
		{name: "storage op without key", op: StorageOp{Action: StorageSet}, err: ErrKeyRequired},
		{name: "custom without execute", op: Custom{Name: "noop"}, err: ErrExecuteRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := q.Enqueue(ctx, tc.op, 0)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}

	if q.Len() != 0 {
		t.Fatalf("expected nothing admitted, got %d entries", q.Len())
	}
	if got := len(sink.byName(EventEnqueued)); got != 0 {
		t.Fatalf("expected no enqueued events, got %d", got)
	}
}

func TestEnqueueAdmitsAndOrders(t *testing.T) {
	clock := newFixedClock()
	q, sink := newTestQueue(t, &stubExecutor{}, clock)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, testCall(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	clock.advance(time.Second)
	if _, err := q.Enqueue(ctx, testCall(), 5); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	clock.advance(time.Second)
	if _, err := q.Enqueue(ctx, testCall(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	entries := q.Peek(10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Priority != 5 {
		t.Fatalf("expected priority 5 first, got %d", entries[0].Priority)
	}
	if entries[1].Priority != 1 || entries[2].Priority != 1 {
		t.Fatalf("expected both priority-1 entries after, got %d and %d",
			entries[1].Priority, entries[2].Priority)
	}
	if entries[1].EnqueuedAt.After(entries[2].EnqueuedAt) {
		t.Fatalf("expected older priority-1 entry before the newer one")
	}
	if got := len(sink.byName(EventEnqueued)); got != 3 {
		t.Fatalf("expected 3 enqueued events, got %d", got)
	}
	if m := q.Metrics(); m.TotalQueued != 3 {
		t.Fatalf("expected totalQueued=3, got %d", m.TotalQueued)
	}
}

func TestEnqueueEvictsLowestPriorityWhenFull(t *testing.T) {
	q, sink := newTestQueue(t, &stubExecutor{}, newFixedClock(), WithMaxQueueSize(1))
	ctx := context.Background()

	lowID, err := q.Enqueue(ctx, testCall(), 1)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, testCall(), 5); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	entries := q.Peek(10)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	if entries[0].Priority != 5 {
		t.Fatalf("expected the priority-5 entry to survive, got priority %d", entries[0].Priority)
	}

	removed := sink.byName(EventItemRemoved)
	if len(removed) != 1 {
		t.Fatalf("expected one item_removed event, got %d", len(removed))
	}
	if removed[0].Payload["reason"] != "queue_full" {
		t.Fatalf("expected reason queue_full, got %v", removed[0].Payload["reason"])
	}
	if removed[0].Payload["id"] != lowID.String() {
		t.Fatalf("expected the priority-1 entry to be evicted")
	}
}

func TestCapacityInvariant(t *testing.T) {
	q, _ := newTestQueue(t, &stubExecutor{}, newFixedClock(), WithMaxQueueSize(5))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := q.Enqueue(ctx, testCall(), i%7); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		if q.Len() > 5 {
			t.Fatalf("queue exceeded its bound after %d enqueues: %d", i+1, q.Len())
		}
	}
}

func TestDequeueRemovesByID(t *testing.T) {
	q, sink := newTestQueue(t, &stubExecutor{}, newFixedClock())
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testCall(), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	entry, ok := q.Dequeue(ctx, id)
	if !ok {
		t.Fatalf("expected dequeue to find the entry")
	}
	if entry.ID != id {
		t.Fatalf("expected entry %s, got %s", id, entry.ID)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after dequeue")
	}
	if _, ok := q.Dequeue(ctx, id); ok {
		t.Fatalf("expected second dequeue to report not found")
	}
	if got := len(sink.byName(EventDequeued)); got != 1 {
		t.Fatalf("expected one dequeued event, got %d", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	q, sink := newTestQueue(t, &stubExecutor{}, newFixedClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, testCall(), i); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	removed := q.Clear(ctx)
	if len(removed) != 3 {
		t.Fatalf("expected 3 removed entries, got %d", len(removed))
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after clear")
	}
	cleared := sink.byName(EventCleared)
	if len(cleared) != 1 || cleared[0].Payload["count"] != 3 {
		t.Fatalf("expected one cleared event with count 3, got %v", cleared)
	}
}

func TestRetryFailedReadmitsAsFresh(t *testing.T) {
	clock := newFixedClock()
	exec := &stubExecutor{errs: []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}
	q, sink := newTestQueue(t, exec, clock, WithRetryDelay(time.Second))
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testCall(), 2)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	exhaustRetries(t, q, clock, time.Second)

	failed := q.Failed(0)
	if len(failed) != 1 {
		t.Fatalf("expected one failed item, got %d", len(failed))
	}

	if !q.RetryFailed(ctx, id) {
		t.Fatalf("expected retry to find the failed item")
	}
	if len(q.Failed(0)) != 0 {
		t.Fatalf("expected failed store to be empty after retry")
	}

	entries := q.Peek(1)
	if len(entries) != 1 {
		t.Fatalf("expected entry back in the live queue")
	}
	if entries[0].Status != StatusPending || entries[0].Attempts != 0 {
		t.Fatalf("expected fresh pending entry, got status=%s attempts=%d",
			entries[0].Status, entries[0].Attempts)
	}
	if got := len(sink.byName(EventItemRetried)); got != 1 {
		t.Fatalf("expected one item_retried event, got %d", got)
	}
	if q.RetryFailed(ctx, id) {
		t.Fatalf("expected second retry of the same id to report not found")
	}
}

// exhaustRetries runs processing rounds, advancing the clock past the retry
// delay each time, until the queue drains.
func exhaustRetries(t *testing.T, q *Queue, clock *fixedClock, delay time.Duration) {
	t.Helper()
	for i := 0; i < 10 && q.Len() > 0; i++ {
		if _, err := q.Process(context.Background(), false); err != nil {
			t.Fatalf("process: %v", err)
		}
		clock.advance(delay)
	}
}
