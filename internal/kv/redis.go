package kv

import (
	"context"

	"gulf-store/internal/cache"
)

const redisKeyPrefix = "kv:"

// Redis keeps each table as one Redis string without expiry.
type Redis struct {
	cache *cache.Redis
}

// NewRedis wraps a cache client.
func NewRedis(c *cache.Redis) *Redis {
	return &Redis{cache: c}
}

// Get reads one blob.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.cache.Get(ctx, redisKeyPrefix+key)
}

// Put writes one blob.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.cache.Set(ctx, redisKeyPrefix+key, value, 0)
}

// Delete removes one blob.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.cache.Del(ctx, redisKeyPrefix+key)
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.cache.Ping(ctx)
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.cache.Close()
}
