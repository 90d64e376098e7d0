package opqueue

import (
	"context"
	"errors"
	"time"
)

// Run drives automatic processing until ctx is canceled. It subscribes to
// the connectivity source and triggers a run on every offline-to-online
// transition; a periodic timer at NetworkCheckInterval is the fallback that
// recovers from a missed transition signal. Cancellation returns nil.
func (q *Queue) Run(ctx context.Context) error {
	cancel := q.cfg.Connectivity.Subscribe(func(online bool) {
		q.onNetworkChange(ctx, online)
	})
	defer cancel()

	q.cfg.Logger.Info("queue monitor started",
		"interval", q.cfg.NetworkCheckInterval, "autoProcess", q.cfg.AutoProcess)

	for {
		if err := q.sleep(ctx, q.cfg.NetworkCheckInterval); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}
		if !q.cfg.Connectivity.Online() || q.Len() == 0 || q.isActive() {
			continue
		}
		if _, err := q.Process(ctx, false); err != nil {
			q.cfg.Logger.Error("periodic processing failed", "err", err)
		}
	}
}

func (q *Queue) onNetworkChange(ctx context.Context, online bool) {
	q.cfg.Logger.Info("network state changed", "online", online)
	q.cfg.Events.Publish(Event{Name: EventNetworkChange, Payload: map[string]any{
		"online": online,
	}})

	if online && q.cfg.AutoProcess && q.Len() > 0 {
		go func() {
			_, _ = q.Process(ctx, false)
		}()
	}
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
