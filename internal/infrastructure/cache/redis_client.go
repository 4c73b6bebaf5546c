package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// ErrCacheMiss is returned by RedisClient.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// RedisClient is the subset of Redis used by the cache layer.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// redisClient prefixes every key and works against a single node or a cluster.
type redisClient struct {
	client redis.UniversalClient
	logger *zap.Logger
	prefix string
}

// Connect opens a Redis client using either a URL or host/port settings and
// verifies it with a ping.
func Connect(cfg config.RedisConfig) (redis.UniversalClient, error) {
	var client redis.UniversalClient
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisClient connects to Redis and wraps the connection for the cache layer
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (RedisClient, error) {
	client, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return WrapClient(client, logger), nil
}

// WrapClient adapts an existing connection shared with other components
func WrapClient(client redis.UniversalClient, logger *zap.Logger) RedisClient {
	return &redisClient{
		client: client,
		logger: logger,
		prefix: "stackmotive:",
	}
}

func (rc *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.RecordRedisOperation("get", time.Since(start).Seconds()) }()

	val, err := rc.client.Get(ctx, rc.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (rc *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RecordRedisOperation("set", time.Since(start).Seconds()) }()

	return rc.client.Set(ctx, rc.prefix+key, value, ttl).Err()
}

// SetNX writes value only when key is absent and reports whether it did.
func (rc *redisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordRedisOperation("setnx", time.Since(start).Seconds()) }()

	return rc.client.SetNX(ctx, rc.prefix+key, value, ttl).Result()
}

func (rc *redisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordRedisOperation("del", time.Since(start).Seconds()) }()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = rc.prefix + k
	}
	return rc.client.Del(ctx, full...).Err()
}

func (rc *redisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return rc.client.Expire(ctx, rc.prefix+key, ttl).Err()
}

// Keys returns matching keys without the prefix. Cluster clients are scanned
// node by node.
func (rc *redisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	fullPattern := rc.prefix + pattern
	var keys []string

	scan := func(ctx context.Context, client *redis.Client) error {
		iter := client.Scan(ctx, 0, fullPattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val()[len(rc.prefix):])
		}
		return iter.Err()
	}

	var err error
	switch c := rc.client.(type) {
	case *redis.ClusterClient:
		err = c.ForEachMaster(ctx, scan)
	case *redis.Client:
		err = scan(ctx, c)
	default:
		iter := rc.client.Scan(ctx, 0, fullPattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val()[len(rc.prefix):])
		}
		err = iter.Err()
	}

	return keys, err
}

func (rc *redisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *redisClient) Close() error {
	return rc.client.Close()
}
