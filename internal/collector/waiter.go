package collector

import (
	"context"
	"time"
)

// Waiter suspends the poll loop between two status checks
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// clockWaiter implements Waiter with a real timer
type clockWaiter struct{}

// NewWaiter creates a waiter that sleeps for the requested duration or until
// the context is done
func NewWaiter() Waiter {
	return clockWaiter{}
}

// Wait blocks for d, returning ctx.Err() if the context ends first
func (clockWaiter) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
