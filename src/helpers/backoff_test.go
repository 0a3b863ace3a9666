package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/logger"
)

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	base := 100 * time.Millisecond
	max := 10 * time.Second

	assert.Equal(t, 100*time.Millisecond, BackoffDelay(0, base, max, 0))
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(1, base, max, 0))
	assert.Equal(t, 400*time.Millisecond, BackoffDelay(2, base, max, 0))
	assert.Equal(t, 800*time.Millisecond, BackoffDelay(3, base, max, 0))
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	base := time.Second
	max := 5 * time.Second

	assert.Equal(t, 4*time.Second, BackoffDelay(2, base, max, 0))
	assert.Equal(t, max, BackoffDelay(3, base, max, 0))
	assert.Equal(t, max, BackoffDelay(10, base, max, 0))
	// Large attempt counts must not overflow past the cap.
	assert.Equal(t, max, BackoffDelay(100, base, max, 0))
}

func TestBackoffDelayJitterStaysBounded(t *testing.T) {
	base := time.Second
	max := time.Minute
	jitter := 0.25

	for attempt := 0; attempt < 6; attempt++ {
		raw := BackoffDelay(attempt, base, max, 0)
		lo := time.Duration(float64(raw) * (1 - jitter))
		hi := time.Duration(float64(raw) * (1 + jitter))
		for i := 0; i < 50; i++ {
			d := BackoffDelay(attempt, base, max, jitter)
			assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, d, hi, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelayDefaultsOnBadBase(t *testing.T) {
	assert.Equal(t, time.Second, BackoffDelay(0, 0, 0, 0))
	assert.Equal(t, 2*time.Second, BackoffDelay(1, -time.Second, 0, 0))
}

// -----------------------------------------------------------------------------

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	log := logger.NewLogger(nil, "helpers-test")

	calls := 0
	err := RetryWithBackoff(context.Background(), log, "flaky op", 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffReturnsLastError(t *testing.T) {
	log := logger.NewLogger(nil, "helpers-test")

	calls := 0
	wantErr := errors.New("still broken")
	err := RetryWithBackoff(context.Background(), log, "dead op", 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffHonorsContext(t *testing.T) {
	log := logger.NewLogger(nil, "helpers-test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, log, "canceled op", 5, time.Hour, func() error {
		calls++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "must not sleep out a canceled context")
}

// -----------------------------------------------------------------------------

func TestErrorHandlerRestartThreshold(t *testing.T) {
	h := NewErrorHandler(logger.NewLogger(nil, "helpers-test"), 3)

	for i := 0; i < 2; i++ {
		h.Handle(errors.New("boom"), "flush")
	}
	assert.False(t, h.ShouldRestart())

	// A success in between breaks the streak.
	h.Handle(nil, "flush")
	assert.Equal(t, 0, h.ErrorCount)

	for i := 0; i < 3; i++ {
		h.Handle(errors.New("boom"), "flush")
	}
	assert.True(t, h.ShouldRestart())

	h.ResetErrorCount()
	assert.False(t, h.ShouldRestart())
}
