// Package errclass assigns caught errors to a coarse taxonomy that drives
// logging, response shaping and client retry behavior.
package errclass

import (
	"strings"
	"time"
)

// Class is the failure category of an error.
type Class string

const (
	// Transient failures are safe to retry automatically.
	Transient Class = "transient"

	// Validation failures require the caller to change its input.
	Validation Class = "validation"

	// Auth failures require the caller to re-authenticate.
	Auth Class = "auth"

	// Infrastructure failures need operator intervention; they will not
	// self-heal quickly.
	Infrastructure Class = "infrastructure"

	// Unknown covers everything else; clients may retry cautiously.
	Unknown Class = "unknown"
)

// Keyword sets are checked in priority order; the first match wins.
// Matching is on the lower-cased error text, so both Go error strings and
// database engine messages are covered.
var (
	transientKeywords = []string{
		"timeout",
		"timed out",
		"connection refused",
		"econnrefused",
		"connection reset",
		"econnreset",
		"no such host",
		"enotfound",
		"socket hang up",
		"too many connections",
		"unavailable",
	}

	validationKeywords = []string{
		"constraint",
		"unique violation",
		"duplicate key",
		"not-null",
		"not null",
		"foreign key",
		"invalid",
		// Postgres constraint violation codes.
		"23505",
		"23502",
		"23503",
	}

	authKeywords = []string{
		"unauthorized",
		"invalid token",
		"jwt",
		"permission denied",
		"forbidden",
	}

	infrastructureKeywords = []string{
		"environment variable",
		"env var",
		"not configured",
		"undefined",
		"does not exist in schema",
		"relation does not exist",
	}
)

// Classify inspects err's message and assigns it a Class.
// A nil error classifies as Unknown; callers should not pass one.
func Classify(err error) Class {
	if err == nil {
		return Unknown
	}

	message := strings.ToLower(err.Error())

	switch {
	case matchesAny(message, transientKeywords):
		return Transient
	case matchesAny(message, validationKeywords):
		return Validation
	case matchesAny(message, authKeywords):
		return Auth
	case matchesAny(message, infrastructureKeywords):
		return Infrastructure
	default:
		return Unknown
	}
}

// Guidance is the retry advice associated with a classification.
type Guidance struct {
	Retryable  bool
	RetryAfter time.Duration
}

// RetryGuidance maps a classification to client retry advice. Unknown
// errors default to a cautious retry rather than assuming permanence.
func RetryGuidance(class Class) Guidance {
	switch class {
	case Transient:
		return Guidance{Retryable: true, RetryAfter: time.Second}
	case Infrastructure:
		return Guidance{Retryable: true, RetryAfter: 5 * time.Second}
	case Validation, Auth:
		return Guidance{Retryable: false}
	default:
		return Guidance{Retryable: true, RetryAfter: 2 * time.Second}
	}
}

func matchesAny(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}

	return false
}
