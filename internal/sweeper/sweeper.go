package sweeper

import (
	"context"
	"log"
	"time"
)

// Store is the single mutation the sweeper needs.
type Store interface {
	CancelStalePending(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically cancels PENDING reservations whose start has passed.
// A request that was never approved before its own start can no longer be
// honored; cancelling it frees the window for history views and keeps the
// picker honest.
type Sweeper struct {
	Store    Store
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Store.CancelStalePending(ctx, time.Now())
	if err != nil {
		log.Printf("sweeper: cancel stale pending failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: cancelled %d stale pending reservations", n)
	}
}
