package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/atmoscheck/internal/metrics"
	"github.com/neexbeast/atmoscheck/internal/weather"
)

const defaultTTL = 10 * time.Minute

// Cache wraps a Redis client and provides typed get/set/delete for weather reports.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to 10 minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// key returns the Redis key for a query key (see weather.Query.Key).
func key(queryKey string) string {
	return "report:" + queryKey
}

// Get retrieves a report from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, queryKey string) (*weather.Report, error) {
	val, err := c.client.Get(ctx, key(queryKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cache get for %s: %w", queryKey, err)
	}

	var r weather.Report
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unmarshaling cached report for %s: %w", queryKey, err)
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &r, nil
}

// Set stores a report in cache with the configured TTL.
func (c *Cache) Set(ctx context.Context, queryKey string, r *weather.Report) error {
	if r == nil {
		return nil
	}

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report for %s: %w", queryKey, err)
	}

	if err := c.client.Set(ctx, key(queryKey), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", queryKey, err)
	}

	return nil
}

// Delete removes the cached report for the given query key.
func (c *Cache) Delete(ctx context.Context, queryKey string) error {
	if err := c.client.Del(ctx, key(queryKey)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s: %w", queryKey, err)
	}
	return nil
}
