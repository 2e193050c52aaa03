package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey = "splitledger:version"
	keyPrefix  = "splitledger:"
)

// ConnectRedis returns nil when url is empty or the server does not answer;
// the ledger then runs without a cache.
func ConnectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		slog.Info("Redis not configured, running without cache")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("Invalid REDIS_URL, running without cache", "error", err)
		return nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis not available, running without cache", "error", err)
		client.Close()
		return nil
	}

	slog.Info("Redis connected", "addr", opts.Addr)
	return client
}

// RedisCache stores computed ledger views. Every write bumps a version
// counter and readers key their entries by the version they computed
// against, so a stale entry can never be served after a write.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return v, nil
}

func (c *RedisCache) Bump(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}
