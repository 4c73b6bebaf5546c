package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/domain/repositories"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// CachedRingRepository is a read-through cache in front of another ring
// repository. Cache failures are logged and fall through to the store.
//
// Saves write the new ring through to the cache. Misses fill the cache only
// when the key is still absent, so a reader that loaded an older version
// before a save cannot replace the entry the save wrote.
type CachedRingRepository struct {
	next        repositories.RingRepository
	client      RedisClient
	invalidator *CacheInvalidator
	ttl         time.Duration
	logger      *zap.Logger
}

// NewCachedRingRepository wraps next with a Redis cache
func NewCachedRingRepository(next repositories.RingRepository, client RedisClient, ttl time.Duration, logger *zap.Logger) *CachedRingRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRingRepository{
		next:        next,
		client:      client,
		invalidator: NewCacheInvalidator(client, logger, InvalidateImmediate),
		ttl:         ttl,
		logger:      logger,
	}
}

func (c *CachedRingRepository) Save(ctx context.Context, ring *entities.AllocationRing) error {
	if err := c.next.Save(ctx, ring); err != nil {
		return err
	}

	if !c.store(ctx, ringKey(ring.ID.String()), ring) {
		// Without the new entry in place the old one must not survive.
		if err := c.invalidator.InvalidateRing(ctx, ring.ID.String(), ring.UserID.String()); err != nil {
			c.logger.Warn("Failed to invalidate ring cache", zap.String("ring_id", ring.ID.String()), zap.Error(err))
		}
		return nil
	}
	if err := c.invalidator.InvalidateMultiple(ctx, []string{userRingsKey(ring.UserID.String())}); err != nil {
		c.logger.Warn("Failed to invalidate ring listing", zap.String("user_id", ring.UserID.String()), zap.Error(err))
	}
	return nil
}

func (c *CachedRingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	key := ringKey(id.String())

	var ring entities.AllocationRing
	if c.load(ctx, key, &ring) {
		return &ring, nil
	}

	fresh, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, fresh)
	return fresh, nil
}

// GetForUpdate never reads the cache.
func (c *CachedRingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	return c.next.GetForUpdate(ctx, id)
}

func (c *CachedRingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := c.next.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.invalidator.InvalidateRing(ctx, id.String(), existing.UserID.String()); err != nil {
		c.logger.Warn("Failed to invalidate ring cache", zap.String("ring_id", id.String()), zap.Error(err))
	}
	return nil
}

func (c *CachedRingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.AllocationRing, error) {
	key := userRingsKey(userID.String())

	var rings []*entities.AllocationRing
	if c.load(ctx, key, &rings) {
		if rings == nil {
			rings = make([]*entities.AllocationRing, 0)
		}
		return rings, nil
	}

	fresh, err := c.next.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, fresh)
	return fresh, nil
}

// List is not cached: it backs background scans that want current data.
func (c *CachedRingRepository) List(ctx context.Context) ([]*entities.AllocationRing, error) {
	return c.next.List(ctx)
}

func (c *CachedRingRepository) load(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("Ring cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheResult("miss")
		return false
	}
	if err := decode(data, dst); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheResult("miss")
		return false
	}
	metrics.RecordCacheResult("hit")
	return true
}

// store overwrites key and reports whether the entry was written.
func (c *CachedRingRepository) store(ctx context.Context, key string, v interface{}) bool {
	data, err := encode(v)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Ring cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// fill writes key only if no other writer got there first.
func (c *CachedRingRepository) fill(ctx context.Context, key string, v interface{}) {
	data, err := encode(v)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if _, err := c.client.SetNX(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Ring cache fill failed", zap.String("key", key), zap.Error(err))
	}
}

// encode uses the json tags so cached and API field names agree.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, dst interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}
