package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in redis so several API replicas share resolved URLs
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisCache
type RedisOption func(*RedisCache)

// WithPrefix sets the key prefix. Default is "tripsnap".
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisCache) {
		r.prefix = prefix
	}
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	r := &RedisCache{
		client: client,
		prefix: "tripsnap",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks connectivity
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Set stores a value; ttl <= 0 keeps the key without expiry
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Get retrieves a value and unmarshals it into dest
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("redis get failed: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a key
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) key(key string) string {
	return r.prefix + ":" + key
}
