package provider

import (
	"context"
	"time"
)

// Backoff is the retry policy shared by the marketplace and valuation
// clients: exponential growth from BaseDelay, capped at MaxDelay, for at
// most MaxAttempts tries.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff mirrors the upstream clients' historical policy:
// 5 attempts starting at 1s, doubling each time.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Delay returns the sleep before retrying after `failures` failed attempts.
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if failures > 30 {
		return b.MaxDelay
	}
	d := b.BaseDelay * time.Duration(1<<uint(failures))
	if d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Sleep waits for the given duration or until ctx is cancelled.
func (b Backoff) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
