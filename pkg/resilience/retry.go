package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialDelay = 500 * time.Millisecond
	retryJitterFactor   = 0.1
)

// RetryConfig controls Retry. The total number of invocations is
// 1 + MaxRetries.
type RetryConfig struct {
	// Op labels the operation in timeout errors and logs.
	Op string

	// MaxRetries is the number of re-invocations after the first attempt.
	MaxRetries uint

	// AttemptBudget bounds each individual attempt. Zero disables the
	// per-attempt deadline; the context still bounds the whole retry loop.
	AttemptBudget time.Duration

	// InitialDelay is the delay before the first retry; each subsequent
	// delay doubles, with a small jitter. Defaults to 500ms.
	InitialDelay time.Duration
}

// Retry invokes fn until it succeeds or the retry budget is exhausted,
// re-invoking it fresh on every attempt. No delay is taken after the final
// attempt; the last observed error is returned on exhaustion.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = retryJitterFactor
	policy.MaxElapsedTime = 0

	attempt := func() (T, error) {
		if cfg.AttemptBudget > 0 {
			return Do(ctx, cfg.AttemptBudget, cfg.Op, fn)
		}

		return fn(ctx)
	}

	return backoff.RetryWithData(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.MaxRetries)), ctx),
	)
}
