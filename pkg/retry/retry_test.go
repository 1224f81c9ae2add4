package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt))
		})
	}
}

func TestJitterStaysInRange(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestLinearAndConstantBackoff(t *testing.T) {
	lin := &LinearBackoff{BaseDelay: time.Second, Increment: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, time.Second, lin.NextDelay(1))
	assert.Equal(t, 2*time.Second, lin.NextDelay(2))
	assert.Equal(t, 3*time.Second, lin.NextDelay(5))

	c := &ConstantBackoff{Delay: 2 * time.Second}
	assert.Equal(t, time.Duration(0), c.NextDelay(0))
	assert.Equal(t, 2*time.Second, c.NextDelay(7))
}

func TestNewBackoff(t *testing.T) {
	b, err := NewBackoff("", 2*time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(3))

	b, err = NewBackoff(BackoffExponential, time.Second, 3*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &ExponentialBackoff{}, b)
	assert.LessOrEqual(t, b.NextDelay(5), 3300*time.Millisecond)

	_, err = NewBackoff("fibonacci", time.Second, 0)
	assert.ErrorContains(t, err, "fibonacci")
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := ConstantConfig(3, time.Millisecond, nil)

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.FromStatus(503)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	cfg := ConstantConfig(5, time.Millisecond, nil)

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return errs.FromStatus(404)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := ConstantConfig(3, time.Millisecond, logger.NewTestLogger())
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return errs.Network(0, "connection refused")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestDoSingleAttemptReturnsCause(t *testing.T) {
	cause := errs.Network(0, "down")
	err := Do(context.Background(), ConstantConfig(1, 0, nil), func(ctx context.Context) error {
		return cause
	})
	assert.Same(t, cause, err)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := ConstantConfig(5, time.Hour, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		return errs.FromStatus(500)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoRetriesRequestTimeouts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), ConstantConfig(3, time.Millisecond, nil), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.Wrap(errs.ErrorTypeNetwork, fmt.Errorf("awaiting headers: %w", context.DeadlineExceeded), "request failed")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsWhenCallerDeadlinePassed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, ConstantConfig(5, 0, nil), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return errs.Wrap(errs.ErrorTypeNetwork, ctx.Err(), "request failed")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, calls)
}

func TestRateLimitBackoffTakesOver(t *testing.T) {
	var delays []time.Duration
	cfg := ConstantConfig(3, time.Millisecond, nil)
	cfg.RateLimitBackoff = &ConstantBackoff{Delay: 5 * time.Millisecond}
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	calls := 0
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.FromStatus(429)
		}
		return errs.FromStatus(502)
	})

	assert.Equal(t, []time.Duration{5 * time.Millisecond, time.Millisecond}, delays)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), ConstantConfig(2, 0, nil), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.FromStatus(500)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("plain")))
	assert.True(t, DefaultRetryIf(fmt.Errorf("wrapped: %w", errs.FromStatus(503))))
	assert.True(t, DefaultRetryIf(errs.Wrap(errs.ErrorTypeNetwork, context.DeadlineExceeded, "request failed")))
}
