// Package ratelimit implements a fixed-window rate limiter on the shared
// store. Correctness rests on the atomicity of a single INCR; there is no
// client-side locking, because concurrent requests may be served by
// different process instances sharing the store.
package ratelimit

import (
	"context"
	"time"

	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/pkg/logger"
)

const keyPrefix = "rate-limit:"

// Rule is a window budget: at most MaxAttempts requests per Window.
type Rule struct {
	MaxAttempts int
	Window      time.Duration
}

// Predefined tiers. Route handlers pick a tier rather than inventing
// numbers per call-site.
var (
	TierLogin     = Rule{MaxAttempts: 5, Window: 15 * time.Minute}
	TierSignup    = Rule{MaxAttempts: 3, Window: 15 * time.Minute}
	TierAPI       = Rule{MaxAttempts: 30, Window: time.Minute}
	TierSensitive = Rule{MaxAttempts: 3, Window: 5 * time.Minute}
)

// Status is the outcome of a rate-limit check.
type Status struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks request budgets against the store. It always fails open:
// an unavailable limiter must not become a denial of service against
// legitimate users.
type Limiter struct {
	client *infrastructure.StoreClient
	logger logger.Logger
}

func New(client *infrastructure.StoreClient, log logger.Logger) *Limiter {
	return &Limiter{
		client: client,
		logger: log.Component("ratelimit"),
	}
}

// Check consumes one attempt for identifier under rule. op labels the
// call-site in logs.
//
// The counter is incremented before it is inspected; two concurrent
// requests can therefore never both observe the pre-increment count. The
// window TTL is set only by the request that creates the counter, which is
// what makes the window fixed rather than continuously sliding.
func (l *Limiter) Check(ctx context.Context, identifier string, rule Rule, op string) Status {
	if l.client.BreakerOpen() {
		l.logger.Debug().Str("op", op).Msg("store breaker open, rate limiting disabled")

		return l.failOpen(rule)
	}

	key := keyPrefix + identifier

	count, err := l.client.Incr(ctx, key)
	if err != nil {
		l.logger.Warn().Err(err).Str("op", op).Msg("rate limit check failed open")

		return l.failOpen(rule)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window); err != nil {
			// A counter without a window would deny the identifier forever
			// once it passes the budget. Discard it and allow.
			l.logger.Warn().Err(err).Str("op", op).Msg("setting rate limit window failed open")
			_, _ = l.client.Del(ctx, key)

			return l.failOpen(rule)
		}
	}

	remaining := rule.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Allowed:   count <= int64(rule.MaxAttempts),
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.windowLeft(ctx, key, rule)),
	}
}

func (l *Limiter) windowLeft(ctx context.Context, key string, rule Rule) time.Duration {
	ttl, err := l.client.TTL(ctx, key)
	if err != nil {
		return rule.Window
	}

	if ttl <= 0 {
		// The counter exists without an expiry, for example after an EXPIRE
		// that never landed. Re-arm the window so the denial cannot outlive
		// it; if even that fails, discard the counter.
		if err := l.client.Expire(ctx, key, rule.Window); err != nil {
			_, _ = l.client.Del(ctx, key)
		}

		return rule.Window
	}

	return ttl
}

func (l *Limiter) failOpen(rule Rule) Status {
	return Status{
		Allowed:   true,
		Remaining: rule.MaxAttempts,
		ResetAt:   time.Now().Add(rule.Window),
	}
}
