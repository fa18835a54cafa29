package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen indicates the breaker is open and the call was
	// rejected without touching the downstream dependency.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests indicates the breaker is half-open and the probe
	// budget has been consumed.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)
