package validation

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field checks a single raw value and returns its normalized form.
// Raw values arrive as decoded JSON types (string, float64, bool, ...)
// or as plain strings when sourced from search or route params.
type Field func(value any) (any, error)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{6,18}[0-9]$`)
)

// Email validates the address and normalizes it to trimmed lower case.
func Email() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		normalized := strings.ToLower(strings.TrimSpace(str))
		if _, err := mail.ParseAddress(normalized); err != nil {
			return nil, errors.New("invalid email address")
		}

		return normalized, nil
	}
}

// NonEmpty requires a string with visible content and trims it.
func NonEmpty() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		if trimmed == "" {
			return nil, errors.New("must not be empty")
		}

		return trimmed, nil
	}
}

// MaxLen bounds a trimmed string's length in runes.
func MaxLen(limit int) Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		if len([]rune(trimmed)) > limit {
			return nil, fmt.Errorf("must be at most %d characters", limit)
		}

		return trimmed, nil
	}
}

func PositiveInt() Field {
	return func(value any) (any, error) {
		n, err := requireInt(value)
		if err != nil {
			return nil, err
		}

		if n <= 0 {
			return nil, errors.New("must be a positive integer")
		}

		return n, nil
	}
}

func NonNegativeInt() Field {
	return func(value any) (any, error) {
		n, err := requireInt(value)
		if err != nil {
			return nil, err
		}

		if n < 0 {
			return nil, errors.New("must be a non-negative integer")
		}

		return n, nil
	}
}

// UUID accepts any RFC 4122 textual form and normalizes to the
// canonical lower-case representation.
func UUID() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		id, err := uuid.Parse(strings.TrimSpace(str))
		if err != nil {
			return nil, errors.New("must be a valid UUID")
		}

		return id.String(), nil
	}
}

// ISODate accepts a calendar date in YYYY-MM-DD form.
func ISODate() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		if _, err := time.Parse(time.DateOnly, trimmed); err != nil {
			return nil, errors.New("must be a date in YYYY-MM-DD format")
		}

		return trimmed, nil
	}
}

func Slug() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		if !slugPattern.MatchString(trimmed) {
			return nil, errors.New("must be a lowercase slug")
		}

		return trimmed, nil
	}
}

// URL requires an absolute http or https URL.
func URL() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)

		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, errors.New("must be a valid http(s) URL")
		}

		return trimmed, nil
	}
}

func Phone() Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		if !phonePattern.MatchString(trimmed) {
			return nil, errors.New("must be a valid phone number")
		}

		return trimmed, nil
	}
}

// OneOf restricts a string to a fixed set of allowed values.
func OneOf(allowed ...string) Field {
	return func(value any) (any, error) {
		str, err := requireString(value)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(str)
		for _, candidate := range allowed {
			if trimmed == candidate {
				return trimmed, nil
			}
		}

		return nil, fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
	}
}

func requireString(value any) (string, error) {
	str, ok := value.(string)
	if !ok {
		return "", errors.New("must be a string")
	}

	return str, nil
}

// requireInt tolerates the types integers actually arrive as: float64
// from JSON bodies, string from search and route params.
func requireInt(value any) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.New("must be an integer")
		}

		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.New("must be an integer")
		}

		return n, nil
	default:
		return 0, errors.New("must be an integer")
	}
}
