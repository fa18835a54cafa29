// Package dedup collapses duplicate submissions within a short window using
// an atomic set-if-absent marker keyed by a payload fingerprint.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/pkg/circuitbreaker"
	"github.com/cartloom/storefront/pkg/fingerprint"
	"github.com/cartloom/storefront/pkg/logger"
	"github.com/cartloom/storefront/pkg/resilience"
)

const (
	keyPrefix = "dedup:"

	// DefaultWindow is how long a fingerprint blocks resubmission.
	DefaultWindow = time.Minute
)

// ErrStoreUnavailable is returned when duplicate detection cannot be
// performed because the breaker is open. Callers must reject the request
// rather than risk double-processing.
var ErrStoreUnavailable = errors.New("deduplication store unavailable")

// DuplicateRequestError marks a submission as a duplicate of one received
// moments earlier.
type DuplicateRequestError struct {
	Operation string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate %s request, the original is still being processed", e.Operation)
}

// Deduplicator guards operations against duplicate submissions.
type Deduplicator struct {
	client  *infrastructure.StoreClient
	logger  logger.Logger
	window  time.Duration
	enabled bool
}

func New(client *infrastructure.StoreClient, log logger.Logger, cfg config.Dedup) *Deduplicator {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	return &Deduplicator{
		client:  client,
		logger:  log.Component("dedup"),
		window:  window,
		enabled: cfg.Enabled,
	}
}

// CheckAndMark records fp and reports whether this is the first sighting
// within the window. The existence of the marker is the sole duplicate
// signal, and creation-and-check is a single atomic SET NX: there is no
// separate exists-then-set to race against.
//
// A timeout reads as "new": an indeterminate check must not block a
// legitimate single submission; at worst a retry produces one duplicate.
// An open breaker is different: it returns ErrStoreUnavailable, because
// with the store known-down no answer can be trusted. A disabled guard
// treats every submission as new.
func (d *Deduplicator) CheckAndMark(ctx context.Context, fp, op string) (bool, error) {
	if !d.enabled {
		return true, nil
	}

	if d.client.BreakerOpen() {
		return false, fmt.Errorf("%w: circuit breaker open", ErrStoreUnavailable)
	}

	marker := []byte(time.Now().UTC().Format(time.RFC3339))

	created, err := d.client.SetNX(ctx, keyPrefix+fp, marker, d.window)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return false, fmt.Errorf("%w: circuit breaker open", ErrStoreUnavailable)
		}

		// Only the fingerprint prefix goes to the log; full fingerprints
		// could be correlated back to payloads.
		d.logger.Warn().
			Err(err).
			Str("op", op).
			Str("fingerprint", fingerprint.Prefix(fp)).
			Msg("dedup check indeterminate, allowing request")

		return true, nil
	}

	if !created {
		d.logger.Warn().
			Str("op", op).
			Str("fingerprint", fingerprint.Prefix(fp)).
			Msg("duplicate request blocked")

		return false, nil
	}

	return true, nil
}

// Clear removes a fingerprint marker, re-arming the guard. Used when an
// operation fails and the client should be allowed to retry immediately.
func (d *Deduplicator) Clear(ctx context.Context, fp string) {
	if !d.enabled {
		return
	}

	if _, err := d.client.Del(ctx, keyPrefix+fp); err != nil {
		d.logger.Warn().Str("fingerprint", fingerprint.Prefix(fp)).Err(err).Msg("clearing dedup marker failed")
	}
}

// Deduplicated fingerprints data, guards against a duplicate, and runs fn.
// On duplicate it returns a *DuplicateRequestError. When fn fails, the
// marker is cleared so the client's retry is not misread as a duplicate.
func Deduplicated[T any](ctx context.Context, d *Deduplicator, data map[string]any, userID, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	fp := fingerprint.New(data, userID)

	isNew, err := resilience.Do(ctx, resilience.BudgetCache, "dedup check", func(ctx context.Context) (bool, error) {
		return d.CheckAndMark(ctx, fp, op)
	})
	if err != nil {
		if resilience.IsTimeout(err) {
			d.logger.Warn().
				Str("op", op).
				Str("fingerprint", fingerprint.Prefix(fp)).
				Msg("dedup check timed out, allowing request")
		} else {
			return zero, err
		}
	} else if !isNew {
		return zero, &DuplicateRequestError{Operation: op}
	}

	result, err := fn(ctx)
	if err != nil {
		d.Clear(ctx, fp)

		return zero, err
	}

	return result, nil
}
