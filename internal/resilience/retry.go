package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig bounds the retry loop around a single tool call.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, the first call included.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: base, 2x, 4x, ...
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
}

// DefaultRetryConfig mirrors the production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Backoff returns the sleep before retry attempt (1-based, so attempt 1 is
// the delay after the first failure). Full jitter keeps concurrent retries
// from synchronizing against a struggling provider.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.BaseDelay << uint(attempt-1)
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(delay)) + 1)
}

// Sleep waits for d or until ctx is cancelled, whichever comes first. It uses
// a timer plus select rather than time.Sleep so cancellation during a backoff
// window returns immediately and no goroutine stalls the session.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
