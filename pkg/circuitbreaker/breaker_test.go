package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestBreakerTripsOnFailureRatio(t *testing.T) {
	cb := New("test-trip", Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute}, zaptest.NewLogger(t))

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerStaysClosedBelowMinRequests(t *testing.T) {
	cb := New("test-min", DefaultConfig(), nil)

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("fail") })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, StateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, StateValue(gobreaker.StateOpen))
	assert.Equal(t, 2.0, StateValue(gobreaker.StateHalfOpen))
}

func TestBreakerIgnoresErrorsMarkedSuccessful(t *testing.T) {
	clientErr := errors.New("bad request")
	cfg := Config{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, clientErr) },
	}
	cb := New("test-successful", cfg, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, clientErr })
		assert.ErrorIs(t, err, clientErr)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
