package opqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessResult summarizes one processing run.
type ProcessResult struct {
	// Processed is the number of entries that completed successfully.
	Processed int
	// Failed is the number of attempts that ended in a retry or a permanent
	// failure.
	Failed int
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Process executes one batch of ready entries sequentially. It is
// single-flight: while a run is active, further calls return (nil, nil)
// without side effects unless force is true. It likewise returns (nil, nil)
// when the network is offline (unless forced), when the queue is empty, and
// when no entry is ready yet.
//
// Executor failures never propagate out of Process; they are resolved into
// per-entry retry or permanent-failure transitions. The returned error is
// non-nil only when the processing loop itself panics.
func (q *Queue) Process(ctx context.Context, force bool) (result *ProcessResult, err error) {
	q.mu.Lock()
	if q.active && !force {
		q.mu.Unlock()

		return nil, nil
	}
	if !force && !q.cfg.Connectivity.Online() {
		q.mu.Unlock()

		return nil, nil
	}
	if q.store.len() == 0 {
		q.mu.Unlock()

		return nil, nil
	}
	batch := q.store.nextBatch(q.cfg.BatchSize, q.cfg.Clock.Now())
	if len(batch) == 0 {
		q.mu.Unlock()

		return nil, nil
	}
	q.active = true
	q.mu.Unlock()

	start := time.Now()
	// The guard must be released even when the loop panics.
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("processing panic: %v", rec)
			q.mu.Lock()
			q.metrics.LastError = msg
			q.active = false
			q.mu.Unlock()
			q.cfg.Logger.Error("queue processing panicked", "panic", rec)
			q.cfg.Events.Publish(Event{Name: EventProcessingError, Payload: map[string]any{
				"error": msg,
			}})
			result = nil
			err = fmt.Errorf("opqueue: %s", msg)

			return
		}
		q.mu.Lock()
		q.active = false
		q.mu.Unlock()
	}()

	q.cfg.Logger.Debug("processing batch", "count", len(batch))
	q.cfg.Events.Publish(Event{Name: EventProcessingStart, Payload: map[string]any{
		"count": len(batch),
	}})

	processed, failed := 0, 0
	for _, entry := range batch {
		if q.processEntry(ctx, entry) {
			processed++
		} else {
			failed++
		}
	}
	duration := time.Since(start)

	q.mu.Lock()
	if processed > 0 {
		q.metrics.LastProcessed = q.cfg.Clock.Now()
	}
	q.mu.Unlock()

	q.saveQueue(ctx)
	q.saveFailed(ctx)

	q.cfg.Events.Publish(Event{Name: EventProcessingComplete, Payload: map[string]any{
		"processed":  processed,
		"failed":     failed,
		"durationMs": duration.Milliseconds(),
	}})

	return &ProcessResult{Processed: processed, Failed: failed, Duration: duration}, nil
}

// processEntry runs one attempt for entry and applies the retry policy. It
// reports whether the attempt succeeded. A failure here never aborts the
// rest of the batch.
func (q *Queue) processEntry(ctx context.Context, entry *Entry) bool {
	q.mu.Lock()
	entry.Attempts++
	entry.Status = StatusProcessing
	entry.LastAttempt = q.cfg.Clock.Now()
	attempts := entry.Attempts
	op := entry.Operation
	id := entry.ID
	q.mu.Unlock()

	_, err := q.executeSafe(ctx, op)

	if err == nil {
		q.mu.Lock()
		entry.Status = StatusCompleted
		entry.RetryAfter = time.Time{}
		entry.LastError = ""
		q.store.remove(id)
		q.metrics.TotalProcessed++
		q.mu.Unlock()

		q.cfg.Logger.Debug("operation succeeded", "id", id, "attempts", attempts)
		q.cfg.Events.Publish(Event{Name: EventItemSuccess, Payload: map[string]any{
			"id":       id.String(),
			"attempts": attempts,
		}})

		return true
	}

	q.mu.Lock()
	q.metrics.LastError = err.Error()
	entry.LastError = err.Error()
	if _, inStore := q.store.byID(id); !inStore {
		// Dequeued while in flight; nothing left to transition.
		q.mu.Unlock()

		return false
	}

	if attempts < q.cfg.RetryAttempts {
		entry.Status = StatusRetrying
		entry.RetryAfter = q.cfg.Clock.Now().Add(q.cfg.RetryDelay)
		retryAfter := entry.RetryAfter
		q.mu.Unlock()

		q.cfg.Logger.Debug("operation failed; will retry",
			"id", id, "attempts", attempts, "err", err)
		q.cfg.Events.Publish(Event{Name: EventItemRetry, Payload: map[string]any{
			"id":         id.String(),
			"attempts":   attempts,
			"retryAfter": retryAfter,
			"error":      err.Error(),
		}})

		return false
	}

	entry.Status = StatusFailedPermanently
	failedAt := q.cfg.Clock.Now()
	q.store.remove(id)
	q.failed.add(FailedItem{Entry: *entry, Error: err.Error(), FailedAt: failedAt})
	q.metrics.TotalFailed++
	q.mu.Unlock()

	q.cfg.Logger.Warn("operation failed permanently",
		"id", id, "attempts", attempts, "err", err)
	q.cfg.Events.Publish(Event{Name: EventItemFailed, Payload: map[string]any{
		"id":       id.String(),
		"attempts": attempts,
		"error":    err.Error(),
	}})

	return false
}

// executeSafe dispatches op and converts an executor panic into an error so
// a misbehaving executor cannot take down the batch.
func (q *Queue) executeSafe(ctx context.Context, op Operation) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("opqueue: executor panic: %v", rec)
		}
	}()

	return q.exec.execute(ctx, op)
}
