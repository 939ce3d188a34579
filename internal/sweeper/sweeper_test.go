package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	calls atomic.Int64
}

func (c *countingStore) CancelStalePending(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	store := &countingStore{}
	s := &Sweeper{Store: store, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run() = %v, want context.DeadlineExceeded", err)
	}
	if got := store.calls.Load(); got < 2 {
		t.Errorf("sweep ran %d times, want at least 2 (immediate + ticker)", got)
	}
}
