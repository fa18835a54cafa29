// Package resilience provides deadline and retry wrappers for calls to
// external dependencies. Callers pick a named budget matching the dependency
// class instead of inventing ad hoc timeouts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Named timeout budgets by dependency class.
const (
	BudgetDatabase    = 10 * time.Second
	BudgetExternalAPI = 8 * time.Second
	BudgetCache       = 2 * time.Second
	BudgetFileUpload  = 30 * time.Second
	BudgetEmail       = 10 * time.Second
	BudgetWebhook     = 15 * time.Second
)

// TimeoutError reports that an operation exceeded its budget.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Op, e.Limit)
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError

	return errors.As(err, &te)
}

// Do runs fn under the given budget. When the deadline fires first, the
// in-flight call is abandoned and a *TimeoutError carrying the operation
// label is returned. Errors from fn itself pass through unchanged.
func Do[T any](ctx context.Context, budget time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so an abandoned fn can still deliver and exit.
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err

	case <-ctx.Done():
		var zero T

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, Limit: budget}
		}

		return zero, ctx.Err()
	}
}

// DoOrDefault behaves like Do, but a timeout resolves to fallback instead of
// failing. Any other error still propagates: only the deadline is absorbed.
func DoOrDefault[T any](ctx context.Context, budget time.Duration, op string, fallback T, fn func(context.Context) (T, error)) (T, error) {
	value, err := Do(ctx, budget, op, fn)
	if err != nil {
		if IsTimeout(err) {
			return fallback, nil
		}

		return value, err
	}

	return value, nil
}

// Op is a single operation participating in a parallel fan-out.
type Op struct {
	Label  string
	Budget time.Duration
	Run    func(context.Context) error
}

// All runs the operations concurrently, each under its own budget.
// The first timeout or error cancels the rest and fails the aggregate.
func All(ctx context.Context, ops ...Op) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, op := range ops {
		g.Go(func() error {
			_, err := Do(ctx, op.Budget, op.Label, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, op.Run(ctx)
			})

			return err
		})
	}

	return g.Wait()
}
