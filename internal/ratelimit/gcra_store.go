package ratelimit

import (
	"context"
	"time"

	"github.com/throttled/throttled/v2"

	"github.com/cartloom/storefront/internal/infrastructure"
)

const gcraKeyPrefix = "rate-limit:gcra:"

// GCRAStore adapts the store client to throttled's GCRA store contract,
// backing the global HTTP rate-limiting middleware.
type GCRAStore struct {
	client *infrastructure.StoreClient
	prefix string
}

func NewGCRAStore(client *infrastructure.StoreClient) throttled.GCRAStoreCtx {
	return &GCRAStore{
		client: client,
		prefix: gcraKeyPrefix,
	}
}

// GetWithTime returns the stored value (-1 when absent) and the store's
// notion of now.
func (s *GCRAStore) GetWithTime(ctx context.Context, key string) (int64, time.Time, error) {
	return s.client.GetInt64(ctx, s.prefix+key)
}

// SetIfNotExistsWithTTL initializes a key only when it does not exist yet.
func (s *GCRAStore) SetIfNotExistsWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return s.client.SetInt64NX(ctx, s.prefix+key, value, ttl)
}

// CompareAndSwapWithTTL atomically replaces old with new if the stored
// value is still old.
func (s *GCRAStore) CompareAndSwapWithTTL(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	return s.client.CompareAndSwapInt64(ctx, s.prefix+key, old, new, ttl)
}
