package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a go-redis client and namespaces every key it touches.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Config defines connection parameters for Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
	Prefix   string
}

// New returns a Redis client based on provided configuration.
func New(cfg Config, logger *slog.Logger) *Redis {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return NewWithClient(redis.NewClient(opts), cfg.Prefix, logger)
}

// NewWithClient wraps an existing go-redis client.
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = "gulf-store:"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis"),
	}
}

// Key returns the namespaced form of key.
func (r *Redis) Key(key string) string {
	return r.prefix + key
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the raw value of key; ok is false when the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return res, true, nil
}

// Set stores a raw value; ttl 0 keeps it forever.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.Key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Del removes key.
func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// SetJSON caches a value as JSON with the provided TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return r.Set(ctx, key, data, ttl)
}

// GetJSON retrieves a JSON value and unmarshals it into dest.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// Close releases Redis resources.
func (r *Redis) Close() error {
	return r.client.Close()
}
