// Package retry provides a small bounded retry policy used by the external
// adapters instead of ad hoc loops at each call site.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes a bounded retry: how many attempts to make and how long to
// wait between them.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff maps a 1-based failed attempt number to the delay before the
	// next attempt. A nil Backoff retries immediately.
	Backoff func(attempt int) time.Duration
}

// CappedLinearBackoff returns a backoff of step*attempt capped at max,
// matching the download retry cadence of the synthesis adapter.
func CappedLinearBackoff(step, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := step * time.Duration(attempt)
		if d > max {
			return max
		}
		return d
	}
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// done. The returned error is the last attempt's error.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if p.Backoff != nil {
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
