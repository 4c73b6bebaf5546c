package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type InvalidationStrategy string

const (
	InvalidateImmediate InvalidationStrategy = "immediate"
	InvalidateTTL       InvalidationStrategy = "ttl"
)

// CacheInvalidator removes stale ring entries after writes.
type CacheInvalidator struct {
	client   RedisClient
	logger   *zap.Logger
	strategy InvalidationStrategy
	ttl      time.Duration
}

// NewCacheInvalidator creates an invalidator. With InvalidateTTL, keys are
// given a short expiry instead of being deleted.
func NewCacheInvalidator(client RedisClient, logger *zap.Logger, strategy InvalidationStrategy) *CacheInvalidator {
	return &CacheInvalidator{
		client:   client,
		logger:   logger,
		strategy: strategy,
		ttl:      5 * time.Second,
	}
}

func (ci *CacheInvalidator) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := ci.client.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to get keys for pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}

	return ci.InvalidateMultiple(ctx, keys)
}

// InvalidateRing drops the cached ring and its owner's ring listing.
func (ci *CacheInvalidator) InvalidateRing(ctx context.Context, ringID, userID string) error {
	return ci.InvalidateMultiple(ctx, []string{ringKey(ringID), userRingsKey(userID)})
}

// InvalidateUser drops every cached listing of the user.
func (ci *CacheInvalidator) InvalidateUser(ctx context.Context, userID string) error {
	return ci.InvalidatePattern(ctx, userRingsKey(userID)+"*")
}

func (ci *CacheInvalidator) InvalidateMultiple(ctx context.Context, keys []string) error {
	if ci.strategy == InvalidateTTL {
		for _, key := range keys {
			if err := ci.client.Expire(ctx, key, ci.ttl); err != nil {
				ci.logger.Error("Failed to expire cache key", zap.String("key", key), zap.Error(err))
			}
		}
		return nil
	}

	if err := ci.client.Del(ctx, keys...); err != nil {
		ci.logger.Error("Failed to delete cache keys", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func ringKey(ringID string) string {
	return "ring:" + ringID
}

func userRingsKey(userID string) string {
	return "user_rings:" + userID
}
