package validation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
)

// ErrInvalidJSON distinguishes a malformed body from a schema failure,
// so handlers can answer with a body-shape message instead of a field one.
var ErrInvalidJSON = errors.New("invalid JSON body")

const maxBodyBytes = 1 << 20

type (
	// Issue is the first schema violation found, formatted "path: message".
	Issue struct {
		Path    string
		Message string
	}

	// Schema maps field names to their checks. Fields listed here are
	// required; wrap with Optional to allow absence.
	Schema map[string]Field
)

func (i *Issue) Error() string {
	return i.Path + ": " + i.Message
}

// Optional skips the check when the field is absent or null.
func Optional(field Field) Field {
	return func(value any) (any, error) {
		if value == nil {
			return nil, nil
		}

		return field(value)
	}
}

// Apply evaluates the schema against decoded data and returns the
// normalized values. Fields are checked in name order so the reported
// first issue is deterministic.
func (s Schema) Apply(data map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	normalized := make(map[string]any, len(s))

	for _, name := range names {
		value, present := data[name]
		if !present {
			value = nil
		}

		checked, err := s[name](value)
		if err != nil {
			return nil, &Issue{Path: name, Message: err.Error()}
		}

		if checked != nil {
			normalized[name] = checked
		}
	}

	return normalized, nil
}

// DecodeBody parses the request body as a JSON object and validates it.
// A malformed body yields ErrInvalidJSON; a schema violation yields *Issue.
func DecodeBody(r *http.Request, schema Schema) (map[string]any, error) {
	var data map[string]any

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(&data); err != nil {
		return nil, ErrInvalidJSON
	}

	return schema.Apply(data)
}

// SearchParams validates URL query parameters against the schema.
// Every value reaches the field check as a string.
func SearchParams(r *http.Request, schema Schema) (map[string]any, error) {
	query := r.URL.Query()

	data := make(map[string]any, len(query))
	for name := range query {
		data[name] = query.Get(name)
	}

	return schema.Apply(data)
}

// RouteParams validates path parameters resolved through the supplied
// lookup, typically chi.URLParam.
func RouteParams(lookup func(name string) string, schema Schema) (map[string]any, error) {
	data := make(map[string]any, len(schema))

	for name := range schema {
		if value := lookup(name); value != "" {
			data[name] = value
		}
	}

	return schema.Apply(data)
}
