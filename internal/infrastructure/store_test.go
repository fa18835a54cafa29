package infrastructure_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/pkg/circuitbreaker"
	"github.com/cartloom/storefront/pkg/logger"
)

func testStoreConfig(addr string) config.Store {
	return config.Store{
		Address:             addr,
		PoolSize:            5,
		MinIdleConns:        1,
		DialTimeout:         500 * time.Millisecond,
		ReadTimeout:         500 * time.Millisecond,
		WriteTimeout:        500 * time.Millisecond,
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

type StoreClientTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *infrastructure.StoreClient
}

func TestStoreClientTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(StoreClientTestSuite))
}

func (s *StoreClientTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	s.client = infrastructure.NewStoreClient(testStoreConfig(s.miniRedis.Addr()), logger.NewTestLogger())
	s.Require().NoError(s.client.Start(context.Background()))
}

func (s *StoreClientTestSuite) TearDownTest() {
	if s.client != nil {
		s.client.Stop()
	}
	if s.miniRedis != nil {
		s.miniRedis.Close()
	}
}

func (s *StoreClientTestSuite) TestGetMissingKeyIsMiss() {
	data, err := s.client.Get(context.Background(), "nope")
	s.Require().NoError(err)
	s.Require().Nil(data)
}

func (s *StoreClientTestSuite) TestSetGetRoundTrip() {
	ctx := context.Background()

	s.Require().NoError(s.client.Set(ctx, "greeting", []byte("hello"), time.Minute))

	data, err := s.client.Get(ctx, "greeting")
	s.Require().NoError(err)
	s.Require().Equal([]byte("hello"), data)
}

func (s *StoreClientTestSuite) TestSetExExpires() {
	ctx := context.Background()

	s.Require().NoError(s.client.SetEx(ctx, "ephemeral", 30, []byte("x")))

	s.miniRedis.FastForward(31 * time.Second)

	data, err := s.client.Get(ctx, "ephemeral")
	s.Require().NoError(err)
	s.Require().Nil(data)
}

func (s *StoreClientTestSuite) TestSetNXOnlyFirstWriteWins() {
	ctx := context.Background()

	created, err := s.client.SetNX(ctx, "guard", []byte("a"), time.Minute)
	s.Require().NoError(err)
	s.Require().True(created)

	created, err = s.client.SetNX(ctx, "guard", []byte("b"), time.Minute)
	s.Require().NoError(err)
	s.Require().False(created)

	data, err := s.client.Get(ctx, "guard")
	s.Require().NoError(err)
	s.Require().Equal([]byte("a"), data)
}

func (s *StoreClientTestSuite) TestIncrCountsFromOne() {
	ctx := context.Background()

	count, err := s.client.Incr(ctx, "counter")
	s.Require().NoError(err)
	s.Require().EqualValues(1, count)

	count, err = s.client.Incr(ctx, "counter")
	s.Require().NoError(err)
	s.Require().EqualValues(2, count)
}

func (s *StoreClientTestSuite) TestExpireAndTTL() {
	ctx := context.Background()

	s.Require().NoError(s.client.Set(ctx, "k", []byte("v"), 0))
	s.Require().NoError(s.client.Expire(ctx, "k", 45*time.Second))

	ttl, err := s.client.TTL(ctx, "k")
	s.Require().NoError(err)
	s.Require().Equal(45*time.Second, ttl)
}

func (s *StoreClientTestSuite) TestDelReportsRemovedCount() {
	ctx := context.Background()

	s.Require().NoError(s.client.Set(ctx, "a", []byte("1"), 0))
	s.Require().NoError(s.client.Set(ctx, "b", []byte("2"), 0))

	removed, err := s.client.Del(ctx, "a", "b", "missing")
	s.Require().NoError(err)
	s.Require().EqualValues(2, removed)
}

func (s *StoreClientTestSuite) TestDelNoKeysIsNoop() {
	removed, err := s.client.Del(context.Background())
	s.Require().NoError(err)
	s.Require().Zero(removed)
}

func (s *StoreClientTestSuite) TestListOperations() {
	ctx := context.Background()

	length, err := s.client.RPush(ctx, "queue", "first", "second")
	s.Require().NoError(err)
	s.Require().EqualValues(2, length)

	items, err := s.client.LRange(ctx, "queue", 0, -1)
	s.Require().NoError(err)
	s.Require().Equal([]string{"first", "second"}, items)
}

func (s *StoreClientTestSuite) TestKeysAndScan() {
	ctx := context.Background()

	s.Require().NoError(s.client.Set(ctx, "product:v1:a", []byte("1"), 0))
	s.Require().NoError(s.client.Set(ctx, "product:v1:b", []byte("2"), 0))
	s.Require().NoError(s.client.Set(ctx, "order:v1:c", []byte("3"), 0))

	keys, err := s.client.Keys(ctx, "product:v1:*")
	s.Require().NoError(err)
	s.Require().Len(keys, 2)

	var scanned []string
	var cursor uint64
	for {
		page, next, err := s.client.Scan(ctx, cursor, "product:v1:*", 10)
		s.Require().NoError(err)
		scanned = append(scanned, page...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.Require().Len(scanned, 2)
}

func (s *StoreClientTestSuite) TestGetInt64MissingReportsMinusOne() {
	value, _, err := s.client.GetInt64(context.Background(), "absent")
	s.Require().NoError(err)
	s.Require().EqualValues(-1, value)
}

func (s *StoreClientTestSuite) TestCompareAndSwapInt64() {
	ctx := context.Background()

	created, err := s.client.SetInt64NX(ctx, "cas", 10, time.Minute)
	s.Require().NoError(err)
	s.Require().True(created)

	swapped, err := s.client.CompareAndSwapInt64(ctx, "cas", 10, 20, time.Minute)
	s.Require().NoError(err)
	s.Require().True(swapped)

	swapped, err = s.client.CompareAndSwapInt64(ctx, "cas", 10, 30, time.Minute)
	s.Require().NoError(err)
	s.Require().False(swapped, "stale expectation must not swap")

	value, _, err := s.client.GetInt64(ctx, "cas")
	s.Require().NoError(err)
	s.Require().EqualValues(20, value)
}

func (s *StoreClientTestSuite) TestReadsFailOpenWhenStoreIsDown() {
	ctx := context.Background()
	s.miniRedis.Close()

	data, err := s.client.Get(ctx, "anything")
	s.Require().NoError(err, "reads must fail open")
	s.Require().Nil(data)

	keys, err := s.client.Keys(ctx, "*")
	s.Require().NoError(err)
	s.Require().Empty(keys)

	removed, err := s.client.Del(ctx, "anything")
	s.Require().NoError(err)
	s.Require().Zero(removed)

	s.Require().NoError(s.client.Set(ctx, "k", []byte("v"), 0), "cache writes must fail open")
}

func (s *StoreClientTestSuite) TestCountersFailLoudWhenStoreIsDown() {
	ctx := context.Background()
	s.miniRedis.Close()

	_, err := s.client.Incr(ctx, "counter")
	s.Require().Error(err)

	_, err = s.client.RPush(ctx, "queue", "item")
	s.Require().Error(err)

	s.Require().Error(s.client.SetEx(ctx, "k", 10, []byte("v")))
}

func (s *StoreClientTestSuite) TestBreakerTripsAndFailsFast() {
	ctx := context.Background()
	s.miniRedis.Close()

	for i := 0; i < 3; i++ {
		_, err := s.client.Incr(ctx, "counter")
		s.Require().Error(err)
	}

	s.Require().True(s.client.BreakerOpen())
	s.Require().Equal("open", s.client.BreakerState())

	start := time.Now()
	_, err := s.client.Incr(ctx, "counter")
	s.Require().ErrorIs(err, circuitbreaker.ErrCircuitOpen)
	s.Require().Less(time.Since(start), 100*time.Millisecond, "open breaker must short-circuit without a network call")
}

func (s *StoreClientTestSuite) TestIsHealthy() {
	s.Require().True(s.client.IsHealthy(context.Background()))

	s.miniRedis.Close()
	s.Require().False(s.client.IsHealthy(context.Background()))
}

func TestOfflineMode(t *testing.T) {
	t.Parallel()

	cfg := testStoreConfig("localhost:1")
	cfg.Offline = true
	client := infrastructure.NewStoreClient(cfg, logger.NewTestLogger())
	defer client.Stop()

	ctx := context.Background()

	require.NoError(t, client.Start(ctx))

	data, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))

	_, err = client.Incr(ctx, "counter")
	require.ErrorIs(t, err, infrastructure.ErrStoreOffline)

	assert.False(t, client.IsHealthy(ctx), "offline client must not report healthy")
}
