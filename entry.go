package opqueue

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one unit of deferred work tracked by the queue: an operation plus
// its scheduling metadata. Entries are owned exclusively by the queue; the
// copies returned from Peek, Dequeue and Clear are snapshots.
type Entry struct {
	ID          uuid.UUID
	Operation   Operation
	Priority    int
	EnqueuedAt  time.Time
	Attempts    int
	Status      Status
	RetryAfter  time.Time
	LastAttempt time.Time
	LastError   string
}

// FailedItem is a snapshot of an entry that exhausted its retry budget.
type FailedItem struct {
	Entry    Entry
	Error    string
	FailedAt time.Time
}
