// Package cache implements a read-through cache on top of the store client.
// The cache is never a single point of failure for reads: any store error
// degrades to fetching from the origin.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/pkg/logger"
)

// TTL tiers. Callers pick the tier matching how stale the data may go
// instead of inventing ad hoc numbers.
const (
	TTLRealtime = 10 * time.Second
	TTLShort    = 30 * time.Second
	TTLMedium   = time.Minute
	TTLLong     = 5 * time.Minute
	TTLStatic   = time.Hour
)

// Source says where a lookup's data came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceOrigin Source = "origin"
)

// Result carries fetched data annotated with its provenance.
type Result[T any] struct {
	Data   T
	Source Source
}

// Cache wraps the store client with cache-aside semantics.
type Cache struct {
	client *infrastructure.StoreClient
	logger logger.Logger
	skip   bool
}

func New(client *infrastructure.StoreClient, log logger.Logger, skip bool) *Cache {
	return &Cache{
		client: client,
		logger: log.Component("cache"),
		skip:   skip,
	}
}

// Fetch looks up key and, on a miss, invokes fetch and populates the cache.
// A failed cache write is logged and swallowed: it must never fail the read
// path. With the skip flag set, fetch is called directly.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (Result[T], error) {
	if c.skip {
		return fromOrigin(ctx, c, key, ttl, fetch, false)
	}

	data, err := c.client.Get(ctx, key)
	if err == nil && data != nil {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			// A corrupt entry reads as a miss; the write below repairs it.
			c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")

			return fromOrigin(ctx, c, key, ttl, fetch, true)
		}

		return Result[T]{Data: value, Source: SourceCache}, nil
	}

	return fromOrigin(ctx, c, key, ttl, fetch, true)
}

func fromOrigin[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error), populate bool) (Result[T], error) {
	value, err := fetch(ctx)
	if err != nil {
		return Result[T]{}, err
	}

	if populate {
		if err := c.set(ctx, key, value, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache population failed")
		}
	}

	return Result[T]{Data: value, Source: SourceOrigin}, nil
}

// Get reads a cached value into out, reporting whether it was present.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	if c.skip {
		return false, nil
	}

	data, err := c.client.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	return true, nil
}

// Set stores value under key for the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.skip {
		return nil
	}

	return c.set(ctx, key, value, ttl)
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	return c.client.Set(ctx, key, data, ttl)
}

// Invalidate removes a single key. Failures are logged and swallowed so a
// mutation is never blocked by its cache invalidation.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if _, err := c.client.Del(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

// InvalidatePattern removes every key matching a glob pattern, returning
// how many were deleted. Same swallow-and-log policy as Invalidate.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) int64 {
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100)
		if err != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache pattern invalidation failed")

			return deleted
		}

		if len(keys) > 0 {
			removed, err := c.client.Del(ctx, keys...)
			if err != nil {
				c.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache pattern delete failed")
			}
			deleted += removed
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted
}
