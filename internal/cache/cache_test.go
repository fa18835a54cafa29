package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/pkg/logger"
)

type product struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

type CacheTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *infrastructure.StoreClient
	cache     *cache.Cache
}

func TestCacheTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(CacheTestSuite))
}

func (s *CacheTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	s.client = infrastructure.NewStoreClient(s.storeConfig(), logger.NewTestLogger())
	s.cache = cache.New(s.client, logger.NewTestLogger(), false)
}

func (s *CacheTestSuite) TearDownTest() {
	if s.client != nil {
		s.client.Stop()
	}
	if s.miniRedis != nil {
		s.miniRedis.Close()
	}
}

func (s *CacheTestSuite) storeConfig() config.Store {
	return config.Store{
		Address:             s.miniRedis.Addr(),
		PoolSize:            5,
		DialTimeout:         time.Second,
		ReadTimeout:         time.Second,
		WriteTimeout:        time.Second,
		PoolTimeout:         time.Second,
		ReconnectAttempts:   1,
		MinReconnectBackoff: time.Millisecond,
		MaxReconnectBackoff: 2 * time.Millisecond,
		Breaker: config.Breaker{
			Enabled:          true,
			MaxRequests:      1,
			FailureWindow:    time.Minute,
			OpenPeriod:       time.Minute,
			FailureThreshold: 3,
		},
	}
}

func (s *CacheTestSuite) TestSetGetRoundTrip() {
	ctx := context.Background()
	stored := product{Slug: "mug", Name: "Mug", Price: 1200}

	s.Require().NoError(s.cache.Set(ctx, cache.ProductKey("mug"), stored, cache.TTLMedium))

	var loaded product
	found, err := s.cache.Get(ctx, cache.ProductKey("mug"), &loaded)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Require().Equal(stored, loaded)
}

func (s *CacheTestSuite) TestFetchPopulatesOnMissThenHits() {
	ctx := context.Background()
	fetches := 0
	fetcher := func(ctx context.Context) (product, error) {
		fetches++

		return product{Slug: "mug", Name: "Mug", Price: 1200}, nil
	}

	first, err := cache.Fetch(ctx, s.cache, cache.ProductKey("mug"), cache.TTLMedium, fetcher)
	s.Require().NoError(err)
	s.Require().Equal(cache.SourceOrigin, first.Source)

	second, err := cache.Fetch(ctx, s.cache, cache.ProductKey("mug"), cache.TTLMedium, fetcher)
	s.Require().NoError(err)
	s.Require().Equal(cache.SourceCache, second.Source)
	s.Require().Equal(first.Data, second.Data)

	s.Require().Equal(1, fetches, "fetcher must run exactly once across a miss and a hit")
}

func (s *CacheTestSuite) TestFetchSkipFlagBypassesStore() {
	ctx := context.Background()
	skipping := cache.New(s.client, logger.NewTestLogger(), true)

	fetches := 0
	for i := 0; i < 2; i++ {
		result, err := cache.Fetch(ctx, skipping, cache.ProductKey("mug"), cache.TTLMedium, func(ctx context.Context) (product, error) {
			fetches++

			return product{Slug: "mug"}, nil
		})
		s.Require().NoError(err)
		s.Require().Equal(cache.SourceOrigin, result.Source)
	}

	s.Require().Equal(2, fetches)
	s.Require().False(s.miniRedis.Exists(cache.ProductKey("mug")))
}

func (s *CacheTestSuite) TestFetchPropagatesFetcherError() {
	boom := errors.New("origin exploded")

	_, err := cache.Fetch(context.Background(), s.cache, "k", cache.TTLShort, func(ctx context.Context) (product, error) {
		return product{}, boom
	})
	s.Require().ErrorIs(err, boom)
}

func (s *CacheTestSuite) TestFetchFallsBackToOriginWhenStoreIsDown() {
	ctx := context.Background()
	s.miniRedis.Close()

	result, err := cache.Fetch(ctx, s.cache, "k", cache.TTLShort, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	s.Require().NoError(err, "an unreachable cache must never fail the read path")
	s.Require().Equal(cache.SourceOrigin, result.Source)
	s.Require().Equal("fresh", result.Data)
}

func (s *CacheTestSuite) TestFetchRepairsCorruptEntry() {
	ctx := context.Background()
	key := cache.ProductKey("mug")
	s.Require().NoError(s.miniRedis.Set(key, "{not json"))

	result, err := cache.Fetch(ctx, s.cache, key, cache.TTLMedium, func(ctx context.Context) (product, error) {
		return product{Slug: "mug", Price: 900}, nil
	})
	s.Require().NoError(err)
	s.Require().Equal(cache.SourceOrigin, result.Source)

	var repaired product
	found, err := s.cache.Get(ctx, key, &repaired)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Require().Equal(900, repaired.Price)
}

func (s *CacheTestSuite) TestExpiryTurnsHitIntoMiss() {
	ctx := context.Background()
	key := cache.ProductKey("mug")

	s.Require().NoError(s.cache.Set(ctx, key, product{Slug: "mug"}, cache.TTLRealtime))
	s.miniRedis.FastForward(11 * time.Second)

	var out product
	found, err := s.cache.Get(ctx, key, &out)
	s.Require().NoError(err)
	s.Require().False(found)
}

func (s *CacheTestSuite) TestInvalidateRemovesKey() {
	ctx := context.Background()
	key := cache.ProductKey("mug")

	s.Require().NoError(s.cache.Set(ctx, key, product{Slug: "mug"}, cache.TTLLong))
	s.cache.Invalidate(ctx, key)

	s.Require().False(s.miniRedis.Exists(key))
}

func (s *CacheTestSuite) TestInvalidatePatternRemovesMatchingKeys() {
	ctx := context.Background()

	s.Require().NoError(s.cache.Set(ctx, cache.ProductListKey("a"), []string{"x"}, cache.TTLLong))
	s.Require().NoError(s.cache.Set(ctx, cache.ProductListKey("b"), []string{"y"}, cache.TTLLong))
	s.Require().NoError(s.cache.Set(ctx, cache.ProductKey("mug"), product{}, cache.TTLLong))

	deleted := s.cache.InvalidatePattern(ctx, cache.ProductListPattern())
	s.Require().EqualValues(2, deleted)
	s.Require().True(s.miniRedis.Exists(cache.ProductKey("mug")))
}

func (s *CacheTestSuite) TestInvalidatePatternSwallowsStoreFailure() {
	s.miniRedis.Close()

	deleted := s.cache.InvalidatePattern(context.Background(), cache.ProductListPattern())
	s.Require().Zero(deleted)
}
