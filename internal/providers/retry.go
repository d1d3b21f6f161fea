package providers

import (
	"context"
	"time"
)

// RetryPolicy is the single retry configuration for provider operations,
// attached to the factory so every backend shares one policy instead of
// each handler growing its own.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy covers transient input-synthesis failures (busy X
// server, momentary grab) without masking real errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: 50 * time.Millisecond}
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// Returns the last error; stops early when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
