package circuitbreaker

import (
	"errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps gobreaker with the failure-counting semantics used
// across the gateway: trip after N consecutive failures, stay open for the
// configured window, then allow probe requests in half-open state.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a circuit breaker from the given configuration.
// Returns nil when disabled; Execute treats a nil breaker as a pass-through.
func New[T any](cfg Config) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.FailureWindow,
		Timeout:     cfg.OpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Name returns the breaker's name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// Open reports whether the breaker currently rejects requests outright.
// Half-open is not considered open: probe requests are allowed through.
func (c *CircuitBreaker[T]) Open() bool {
	if c == nil {
		return false
	}

	return c.cb.State() == gobreaker.StateOpen
}

// State returns the current state as a string, for logs and health output.
func (c *CircuitBreaker[T]) State() string {
	if c == nil {
		return "disabled"
	}

	return c.cb.State().String()
}

// Execute runs fn through the circuit breaker. A nil breaker executes fn
// directly. Returns ErrCircuitOpen when the breaker is open and
// ErrTooManyRequests when the half-open probe budget is exhausted.
func Execute[T any](cb *CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if err != nil {
		var zero T

		if errors.Is(err, gobreaker.ErrOpenState) {
			return zero, ErrCircuitOpen
		}

		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrTooManyRequests
		}

		return result, err
	}

	return result, nil
}
