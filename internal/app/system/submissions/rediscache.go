package submissions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache shared across processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redisURL (redis://host:port/db) and verifies
// the connection.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get returns the cached value. Misses and Redis errors both report false.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores value with an expiry of ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis answers.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
