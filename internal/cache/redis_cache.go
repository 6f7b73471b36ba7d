package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON encoded values under string keys
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Stats holds cache counters
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// RedisCache implements Cache on top of Redis
type RedisCache struct {
	client     redis.UniversalClient
	name       string
	keyPrefix  string
	defaultTTL time.Duration

	hits   int64
	misses int64
	sets   int64
	errors int64
}

// NewRedisCache creates a cache whose keys are namespaced under "botcontrol:<name>:"
func NewRedisCache(client redis.UniversalClient, name string, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		name:       name,
		keyPrefix:  "botcontrol:" + name + ":",
		defaultTTL: defaultTTL,
	}
}

// Get decodes the value stored under key into dest. It reports false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&c.misses, 1)
			metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
			return false, nil
		}
		atomic.AddInt64(&c.errors, 1)
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	atomic.AddInt64(&c.hits, 1)
	metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	return true, nil
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return fmt.Errorf("failed to set cache value: %w", err)
	}

	atomic.AddInt64(&c.sets, 1)
	return nil
}

// Delete removes keys from the cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.keyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the cache counters
func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Sets:   atomic.LoadInt64(&c.sets),
		Errors: atomic.LoadInt64(&c.errors),
	}
}
