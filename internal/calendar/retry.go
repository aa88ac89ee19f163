package calendar

import (
	"context"
	"errors"
	"time"
)

// WithRetry runs fn up to attempts times, retrying only rate-limited
// failures with exponential backoff: min(2^attempt * base, max). Any other
// outcome is returned immediately.
func WithRetry(ctx context.Context, attempts int, base, max time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrRateLimited) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := base << uint(attempt)
		if delay > max || delay <= 0 {
			delay = max
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
