package opqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SnapshotVersion identifies the persisted schema. A stored snapshot with a
// different version is discarded on load rather than migrated.
const SnapshotVersion = "1"

type entryRecord struct {
	ID          uuid.UUID         `json:"id"`
	Operation   operationEnvelope `json:"operation"`
	Priority    int               `json:"priority"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
	Attempts    int               `json:"attempts"`
	Status      Status            `json:"status"`
	RetryAfter  time.Time         `json:"retryAfter,omitzero"`
	LastAttempt time.Time         `json:"lastAttempt,omitzero"`
	LastError   string            `json:"lastError,omitempty"`
}

type queueSnapshot struct {
	Version string        `json:"version"`
	Queue   []entryRecord `json:"queue"`
	Metrics Metrics       `json:"metrics"`
	SavedAt time.Time     `json:"savedAt"`
}

type failedRecord struct {
	Entry    entryRecord `json:"entry"`
	Error    string      `json:"error"`
	FailedAt time.Time   `json:"failedAt"`
}

type failedSnapshot struct {
	FailedItems []failedRecord `json:"failedItems"`
}

func encodeEntry(e *Entry) (entryRecord, error) {
	env, err := marshalOperation(e.Operation)
	if err != nil {
		return entryRecord{}, err
	}

	return entryRecord{
		ID:          e.ID,
		Operation:   env,
		Priority:    e.Priority,
		EnqueuedAt:  e.EnqueuedAt,
		Attempts:    e.Attempts,
		Status:      e.Status,
		RetryAfter:  e.RetryAfter,
		LastAttempt: e.LastAttempt,
		LastError:   e.LastError,
	}, nil
}

func decodeEntry(rec entryRecord) (*Entry, error) {
	op, err := unmarshalOperation(rec.Operation)
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:          rec.ID,
		Operation:   op,
		Priority:    rec.Priority,
		EnqueuedAt:  rec.EnqueuedAt,
		Attempts:    rec.Attempts,
		Status:      rec.Status,
		RetryAfter:  rec.RetryAfter,
		LastAttempt: rec.LastAttempt,
		LastError:   rec.LastError,
	}, nil
}

// saveQueue persists the live entries and metrics. Persistence is
// best-effort: a failed write is logged and the in-memory state stays the
// source of truth.
func (q *Queue) saveQueue(ctx context.Context) {
	q.mu.Lock()
	snap := queueSnapshot{
		Version: SnapshotVersion,
		Queue:   make([]entryRecord, 0, q.store.len()),
		Metrics: q.metrics,
		SavedAt: q.cfg.Clock.Now(),
	}
	for _, e := range q.store.entries {
		rec, err := encodeEntry(e)
		if err != nil {
			q.cfg.Logger.Warn("skipping unserializable entry", "id", e.ID, "err", err)

			continue
		}
		snap.Queue = append(snap.Queue, rec)
	}
	q.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		q.cfg.Logger.Error("queue snapshot marshal failed", "err", err)

		return
	}
	if err := q.cfg.Storage.Set(ctx, q.cfg.QueueKey, data); err != nil {
		q.cfg.Logger.Error("queue snapshot write failed", "key", q.cfg.QueueKey, "err", err)
	}
}

// saveFailed persists the failed-item list, best-effort like saveQueue.
func (q *Queue) saveFailed(ctx context.Context) {
	q.mu.Lock()
	snap := failedSnapshot{FailedItems: make([]failedRecord, 0, len(q.failed.items))}
	for i := range q.failed.items {
		item := q.failed.items[i]
		rec, err := encodeEntry(&item.Entry)
		if err != nil {
			q.cfg.Logger.Warn("skipping unserializable failed item", "id", item.Entry.ID, "err", err)

			continue
		}
		snap.FailedItems = append(snap.FailedItems, failedRecord{
			Entry:    rec,
			Error:    item.Error,
			FailedAt: item.FailedAt,
		})
	}
	q.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		q.cfg.Logger.Error("failed-item snapshot marshal failed", "err", err)

		return
	}
	if err := q.cfg.Storage.Set(ctx, q.cfg.FailedKey, data); err != nil {
		q.cfg.Logger.Error("failed-item snapshot write failed", "key", q.cfg.FailedKey, "err", err)
	}
}

// Load restores the queue and failed-item snapshots from storage. Missing
// data, a version mismatch, or a corrupt record all leave the queue empty
// rather than failing: persistence problems are logged, never surfaced.
//
// Crash recovery: any restored entry stuck in the processing status is reset
// to pending with its attempt count preserved, so a restart can never leave
// an entry wedged mid-execution.
func (q *Queue) Load(ctx context.Context) {
	q.loadQueue(ctx)
	q.loadFailed(ctx)
}

func (q *Queue) loadQueue(ctx context.Context) {
	data, err := q.cfg.Storage.Get(ctx, q.cfg.QueueKey)
	if err != nil {
		if !errors.Is(err, ErrNoData) {
			q.cfg.Logger.Error("queue snapshot read failed", "key", q.cfg.QueueKey, "err", err)
		}

		return
	}

	var snap queueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		q.cfg.Logger.Warn("discarding corrupt queue snapshot", "err", err)

		return
	}
	if snap.Version != SnapshotVersion {
		q.cfg.Logger.Warn("discarding queue snapshot with mismatched version",
			"stored", snap.Version, "current", SnapshotVersion)

		return
	}

	entries := make([]*Entry, 0, len(snap.Queue))
	for _, rec := range snap.Queue {
		entry, err := decodeEntry(rec)
		if err != nil {
			q.cfg.Logger.Warn("skipping undecodable entry", "id", rec.ID, "err", err)

			continue
		}
		if entry.Status == StatusProcessing {
			entry.Status = StatusPending
		}
		entries = append(entries, entry)
	}

	q.mu.Lock()
	q.store.replaceAll(entries)
	q.metrics = snap.Metrics
	q.mu.Unlock()

	q.cfg.Logger.Info("queue snapshot restored", "entries", len(entries), "savedAt", snap.SavedAt)
}

func (q *Queue) loadFailed(ctx context.Context) {
	data, err := q.cfg.Storage.Get(ctx, q.cfg.FailedKey)
	if err != nil {
		if !errors.Is(err, ErrNoData) {
			q.cfg.Logger.Error("failed-item snapshot read failed", "key", q.cfg.FailedKey, "err", err)
		}

		return
	}

	var snap failedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		q.cfg.Logger.Warn("discarding corrupt failed-item snapshot", "err", err)

		return
	}

	items := make([]FailedItem, 0, len(snap.FailedItems))
	for _, rec := range snap.FailedItems {
		entry, err := decodeEntry(rec.Entry)
		if err != nil {
			q.cfg.Logger.Warn("skipping undecodable failed item", "id", rec.Entry.ID, "err", err)

			continue
		}
		items = append(items, FailedItem{Entry: *entry, Error: rec.Error, FailedAt: rec.FailedAt})
	}

	q.mu.Lock()
	q.failed.replaceAll(items)
	q.mu.Unlock()
}
