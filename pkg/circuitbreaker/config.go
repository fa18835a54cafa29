package circuitbreaker

import "time"

// Config holds the tuning knobs for a circuit breaker.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// Enabled determines whether the breaker is active. When false,
	// New returns nil and Execute passes through directly.
	Enabled bool

	// MaxRequests is the number of probe requests allowed while half-open.
	// Zero means a single probe.
	MaxRequests uint

	// FailureWindow is the cyclic period over which consecutive failures
	// are counted in the closed state. Failures older than the window do
	// not contribute to tripping the breaker. Zero disables the reset.
	FailureWindow time.Duration

	// OpenPeriod is how long the breaker stays open before moving to
	// half-open. Zero defaults to 60 seconds.
	OpenPeriod time.Duration

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold uint

	// OnStateChange, when set, is invoked on every state transition.
	OnStateChange func(name, from, to string)
}
