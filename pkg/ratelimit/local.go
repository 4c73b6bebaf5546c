package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps a token bucket per key in process memory. It is used
// when no Redis is configured, so limits apply per instance.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLocalLimiter allows requestsPerMinute per key with an equal burst
func NewLocalLimiter(requestsPerMinute int) *LocalLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    requestsPerMinute,
	}
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow checks if a request should be allowed
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if N requests should be allowed
func (l *LocalLimiter) AllowN(_ context.Context, key string, n int) (bool, error) {
	return l.get(key).AllowN(time.Now(), n), nil
}

// Reset forgets the bucket for a key
func (l *LocalLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
	return nil
}

// GetRemaining returns the whole tokens left in the key's bucket
func (l *LocalLimiter) GetRemaining(_ context.Context, key string) (int64, error) {
	tokens := l.get(key).Tokens()
	if tokens < 0 {
		return 0, nil
	}
	return int64(tokens), nil
}
