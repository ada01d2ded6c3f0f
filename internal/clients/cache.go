package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "client:"

// DetailsCache is a read-through Redis cache for public payment details.
// A nil cache is a no-op, so deployments without Redis skip caching entirely.
type DetailsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDetailsCache wraps a Redis client. Returns nil when rdb is nil.
func NewDetailsCache(rdb *redis.Client, ttl time.Duration) *DetailsCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DetailsCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached details, or nil on a miss.
func (c *DetailsCache) Get(ctx context.Context, baseURL string) (*PublicDetails, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+baseURL).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clients: cache read: %w", err)
	}

	var details PublicDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("clients: cache decode: %w", err)
	}
	return &details, nil
}

// Set stores the details under the base URL key.
func (c *DetailsCache) Set(ctx context.Context, baseURL string, details PublicDetails) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("clients: cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+baseURL, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("clients: cache write: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry after a successful upsert.
func (c *DetailsCache) Invalidate(ctx context.Context, baseURL string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, cacheKeyPrefix+baseURL).Err(); err != nil {
		return fmt.Errorf("clients: cache invalidate: %w", err)
	}
	return nil
}
