package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func quickConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestWithExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), quickConfig(3), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := WithExponentialBackoff(context.Background(), quickConfig(5), func() error {
		calls++
		return permanent
	}, func(err error) bool { return err == errTransient })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), quickConfig(2), func() error {
		calls++
		return errTransient
	}, func(error) bool { return true })

	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "max retry attempts (2)")
	assert.Equal(t, 2, calls)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := quickConfig(3)
	cfg.BaseDelay = time.Second
	err := WithExponentialBackoff(ctx, cfg, func() error { return errTransient }, func(error) bool { return true })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, Delay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, 300*time.Millisecond, Delay(cfg, 2))

	cfg.Jitter = 0.5
	d := Delay(cfg, 0)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	assert.LessOrEqual(t, d, 150*time.Millisecond)
}
