package task

import (
	"context"
	"time"

	"loom/pkg/logging"
)

// Sweeper periodically removes tasks whose TTL has elapsed. Expiry is
// advisory wall-clock state: no timers are armed per task, the sweep
// simply re-evaluates every record on its interval.
type Sweeper struct {
	store    Store
	interval time.Duration
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := s.store.DeleteExpired(ctx, now); err != nil {
					logging.Warn("Sweeper", "TTL sweep failed: %v", err)
				}
			}
		}
	}()
}

// SweepOnce performs one immediate sweep, returning the removal count.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}
