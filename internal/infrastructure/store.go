// Package infrastructure owns the connection to the shared key-value store.
// Every operation runs through a single circuit breaker, so a run of
// connection failures from any subsystem trips the breaker for all of them:
// the store's availability is one shared fate.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/pkg/circuitbreaker"
	"github.com/cartloom/storefront/pkg/logger"
)

// ErrStoreOffline is returned by fail-loud operations when the client was
// configured to run without a live store.
var ErrStoreOffline = errors.New("store is offline")

// failurePolicy declares what an operation does when the store is
// unreachable. Every operation added to this client must pick one
// explicitly; there is no silent default.
type failurePolicy int

const (
	// failOpen: log and return the zero value. Reads and cache writes use
	// this; the caller proceeds as if the key were absent.
	failOpen failurePolicy = iota

	// failLoud: log and return the error. Counters, queues and atomic
	// guards use this; silently no-oping them would corrupt invariants.
	failLoud
)

const healthCheckBudget = 3 * time.Second

// StoreClient wraps the store connection with a circuit breaker and a
// per-operation failure policy. Construct once per process and share.
type StoreClient struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker[any]
	logger  logger.Logger
	config  config.Store

	closeOnce sync.Once
}

func NewStoreClient(cfg config.Store, log logger.Logger) *StoreClient {
	log = log.Component("store")

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              int(cfg.DB),
		PoolSize:        int(cfg.PoolSize),
		MinIdleConns:    int(cfg.MinIdleConns),
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      int(cfg.ReconnectAttempts),
		MinRetryBackoff: cfg.MinReconnectBackoff,
		MaxRetryBackoff: cfg.MaxReconnectBackoff,
	})

	breaker := circuitbreaker.New[any](circuitbreaker.Config{
		Name:             "store",
		Enabled:          cfg.Breaker.Enabled,
		MaxRequests:      cfg.Breaker.MaxRequests,
		FailureWindow:    cfg.Breaker.FailureWindow,
		OpenPeriod:       cfg.Breaker.OpenPeriod,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OnStateChange: func(name, from, to string) {
			log.Warn().
				Str("breaker", name).
				Str("from", from).
				Str("to", to).
				Msg("circuit breaker state change")
		},
	})

	return &StoreClient{
		rdb:     rdb,
		breaker: breaker,
		logger:  log,
		config:  cfg,
	}
}

// Start verifies connectivity. The connection itself is established lazily
// per command, so a failure here is advisory: callers may continue and rely
// on the fail-open paths.
func (c *StoreClient) Start(ctx context.Context) error {
	if c.config.Offline {
		c.logger.Info().Msg("store client running offline, all operations are no-ops")

		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging store at %s: %w", c.config.Address, err)
	}

	return nil
}

// Stop closes the connection pool. Safe to call more than once.
func (c *StoreClient) Stop() {
	c.closeOnce.Do(func() {
		if err := c.rdb.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("closing store connection")
		}
	})
}

// BreakerOpen reports whether the shared circuit breaker currently rejects
// store operations. Subsystems that must fail open (rate limiting) or fail
// closed (deduplication) check this before touching the store.
func (c *StoreClient) BreakerOpen() bool {
	return c.breaker.Open()
}

// BreakerState returns the breaker state for health output.
func (c *StoreClient) BreakerState() string {
	return c.breaker.State()
}

// Offline reports whether the client suppresses all network calls.
func (c *StoreClient) Offline() bool {
	return c.config.Offline
}

// IsHealthy checks store availability within a short budget.
func (c *StoreClient) IsHealthy(ctx context.Context) bool {
	if c.config.Offline {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckBudget)
	defer cancel()

	return c.rdb.Ping(ctx).Err() == nil
}

// Raw exposes the underlying client for advanced atomic operations
// (scripts, pipelines). Callers bypass the breaker and the failure policy
// and own their error handling.
func (c *StoreClient) Raw() *redis.Client {
	return c.rdb
}

// Ping checks connectivity through the breaker.
func (c *StoreClient) Ping(ctx context.Context) error {
	_, err := c.execute("ping", failLoud, func() (any, error) {
		return nil, c.rdb.Ping(ctx).Err()
	})

	return err
}

// Get returns the value at key. A missing key, a store failure and an open
// breaker all read as a miss (nil, nil): reads fail open.
func (c *StoreClient) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.execute("get", failOpen, func() (any, error) {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return asType[[]byte](result), nil
}

// Set writes value with the given TTL. Write failures are logged and
// swallowed: the caller proceeds without caching.
func (c *StoreClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.execute("set", failOpen, func() (any, error) {
		return nil, c.rdb.Set(ctx, key, value, ttl).Err()
	})

	return err
}

// SetEx writes value with an expiry in seconds and fails loud: callers that
// reach for SETEX depend on the write happening.
func (c *StoreClient) SetEx(ctx context.Context, key string, seconds int64, value []byte) error {
	_, err := c.execute("setex", failLoud, func() (any, error) {
		return nil, c.rdb.SetEx(ctx, key, value, time.Duration(seconds)*time.Second).Err()
	})

	return err
}

// SetNX atomically sets key only if it does not exist. Fails loud; the
// deduplication layer decides its own degraded behavior.
func (c *StoreClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	result, err := c.execute("setnx", failLoud, func() (any, error) {
		return c.rdb.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, err
	}

	return asType[bool](result), nil
}

// Del removes the given keys, returning how many existed. Fails open: a
// failed delete reports zero deletions.
func (c *StoreClient) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	result, err := c.execute("del", failOpen, func() (any, error) {
		return c.rdb.Del(ctx, keys...).Result()
	})
	if err != nil {
		return 0, err
	}

	return asType[int64](result), nil
}

// Incr atomically increments the counter at key. Fails loud: a counter
// that silently no-ops would let every request through a rate limit.
func (c *StoreClient) Incr(ctx context.Context, key string) (int64, error) {
	result, err := c.execute("incr", failLoud, func() (any, error) {
		return c.rdb.Incr(ctx, key).Result()
	})
	if err != nil {
		return 0, err
	}

	return asType[int64](result), nil
}

// Expire sets a TTL on an existing key.
func (c *StoreClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := c.execute("expire", failLoud, func() (any, error) {
		return nil, c.rdb.Expire(ctx, key, ttl).Err()
	})

	return err
}

// TTL returns the remaining time-to-live of key. Negative durations follow
// store semantics (-1 no expiry, -2 missing key).
func (c *StoreClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	result, err := c.execute("ttl", failLoud, func() (any, error) {
		return c.rdb.TTL(ctx, key).Result()
	})
	if err != nil {
		return 0, err
	}

	return asType[time.Duration](result), nil
}

// Keys returns the keys matching pattern. Fails open with an empty slice.
// Prefer Scan in hot paths; KEYS blocks the store on large keyspaces.
func (c *StoreClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	result, err := c.execute("keys", failOpen, func() (any, error) {
		return c.rdb.Keys(ctx, pattern).Result()
	})
	if err != nil {
		return nil, err
	}

	return asType[[]string](result), nil
}

// Scan iterates the keyspace incrementally.
func (c *StoreClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	type page struct {
		keys []string
		next uint64
	}

	result, err := c.execute("scan", failLoud, func() (any, error) {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, err
		}

		return page{keys: keys, next: next}, nil
	})
	if err != nil {
		return nil, 0, err
	}

	p := asType[page](result)

	return p.keys, p.next, nil
}

// RPush appends values to the list at key. Fails loud: queue pushes must
// not silently vanish.
func (c *StoreClient) RPush(ctx context.Context, key string, values ...any) (int64, error) {
	result, err := c.execute("rpush", failLoud, func() (any, error) {
		return c.rdb.RPush(ctx, key, values...).Result()
	})
	if err != nil {
		return 0, err
	}

	return asType[int64](result), nil
}

// LRange returns list elements between start and stop. Fails open with an
// empty slice.
func (c *StoreClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	result, err := c.execute("lrange", failOpen, func() (any, error) {
		return c.rdb.LRange(ctx, key, start, stop).Result()
	})
	if err != nil {
		return nil, err
	}

	return asType[[]string](result), nil
}

// GetInt64 retrieves an integer value and an observation timestamp, for
// stores that need a clock reading alongside the value. A missing key
// reports -1, as the rate-limit store contract expects.
func (c *StoreClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	now := time.Now()

	result, err := c.execute("getint", failLoud, func() (any, error) {
		value, err := c.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			return int64(-1), nil
		}
		if err != nil {
			return nil, err
		}

		return value, nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}

	return asType[int64](result), now, nil
}

// SetInt64NX sets an integer value only if the key does not exist.
func (c *StoreClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	result, err := c.execute("setintnx", failLoud, func() (any, error) {
		return c.rdb.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, err
	}

	return asType[bool](result), nil
}

// casScript performs compare-and-swap server side. Client-side
// check-then-set would reintroduce the race atomicity exists to prevent.
var casScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// CompareAndSwapInt64 atomically replaces old with new if the stored value
// still equals old.
func (c *StoreClient) CompareAndSwapInt64(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	result, err := c.execute("cas", failLoud, func() (any, error) {
		swapped, err := casScript.Run(ctx, c.rdb, []string{key}, old, new, ttl.Milliseconds()).Int64()
		if err != nil {
			return nil, err
		}

		return swapped == 1, nil
	})
	if err != nil {
		return false, err
	}

	return asType[bool](result), nil
}

// execute routes an operation through the breaker and applies its declared
// failure policy.
func (c *StoreClient) execute(op string, policy failurePolicy, fn func() (any, error)) (any, error) {
	if c.config.Offline {
		if policy == failLoud {
			return nil, ErrStoreOffline
		}

		return nil, nil
	}

	result, err := circuitbreaker.Execute(c.breaker, fn)
	if err == nil {
		return result, nil
	}

	if policy == failOpen {
		c.logger.Warn().Err(err).Str("op", op).Msg("store operation failed open")

		return nil, nil
	}

	c.logger.Error().Err(err).Str("op", op).Msg("store operation failed")

	return nil, fmt.Errorf("store %s: %w", op, err)
}

// asType unwraps an execute result, mapping a nil interface to the zero
// value.
func asType[T any](v any) T {
	if v == nil {
		var zero T

		return zero
	}

	return v.(T)
}
