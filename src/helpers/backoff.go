package helpers

import (
	"context"
	"math/rand"
	"time"

	"github.com/tastyware/tastytrade/src/logger"
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// BackoffDelay returns the delay before the given attempt (0-based): base
// doubling per attempt, capped at max, with a uniform random jitter of
// +/- jitterFraction applied last.
func BackoffDelay(attempt int, base, max time.Duration, jitterFraction float64) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			delay = max
			break
		}
	}
	if max > 0 && delay > max {
		delay = max
	}
	if jitterFraction > 0 {
		spread := float64(delay) * jitterFraction
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = base
		}
	}
	return delay
}

// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff, honoring ctx cancellation between attempts.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := BackoffDelay(attempt, baseDelay, 0, 0)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, lastErr, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
