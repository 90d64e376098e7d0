package opqueue

// Status represents the lifecycle state of a queue entry.
//
// Statuses are persisted as strings so snapshots stay readable and stable
// across versions.
type Status string

const (
	// StatusPending indicates the entry is waiting for its first attempt.
	StatusPending Status = "pending"
	// StatusProcessing indicates the entry is being executed inside a batch run.
	StatusProcessing Status = "processing"
	// StatusRetrying indicates a failed attempt awaiting its retry delay.
	StatusRetrying Status = "retrying"
	// StatusCompleted indicates successful execution; completed entries are
	// removed from the live store and never persisted.
	StatusCompleted Status = "completed"
	// StatusFailedPermanently indicates the retry budget is exhausted and the
	// entry was moved to the failed-item store.
	StatusFailedPermanently Status = "failed_permanently"
)
