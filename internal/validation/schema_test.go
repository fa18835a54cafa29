package validation_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartloom/storefront/internal/validation"
)

func TestEmailNormalizes(t *testing.T) {
	t.Parallel()

	value, err := validation.Email()("  Jane.Doe@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", value)
}

func TestEmailRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []any{"", "not-an-email", "a@", "@example.com", 42} {
		_, err := validation.Email()(input)
		assert.Error(t, err, "input %v", input)
	}
}

func TestNonEmptyTrims(t *testing.T) {
	t.Parallel()

	value, err := validation.NonEmpty()("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	_, err = validation.NonEmpty()("   ")
	assert.Error(t, err)
}

func TestIntFields(t *testing.T) {
	t.Parallel()

	// JSON numbers decode as float64.
	value, err := validation.PositiveInt()(float64(3))
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	_, err = validation.PositiveInt()(float64(0))
	assert.Error(t, err)

	_, err = validation.PositiveInt()(2.5)
	assert.Error(t, err)

	// Search params arrive as strings.
	value, err = validation.NonNegativeInt()("0")
	require.NoError(t, err)
	assert.Equal(t, 0, value)

	_, err = validation.NonNegativeInt()("-1")
	assert.Error(t, err)
}

func TestUUIDNormalizes(t *testing.T) {
	t.Parallel()

	value, err := validation.UUID()("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", value)

	_, err = validation.UUID()("nope")
	assert.Error(t, err)
}

func TestFormatFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		field validation.Field
		good  string
		bad   string
	}{
		{"date", validation.ISODate(), "2026-08-30", "30/08/2026"},
		{"slug", validation.Slug(), "summer-sale-2026", "Summer Sale"},
		{"url", validation.URL(), "https://example.com/p/1", "ftp://example.com"},
		{"phone", validation.Phone(), "+1 (555) 010-2030", "call me"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := tc.field(tc.good)
			assert.NoError(t, err)

			_, err = tc.field(tc.bad)
			assert.Error(t, err)
		})
	}
}

func TestSchemaReportsFirstIssueByFieldName(t *testing.T) {
	t.Parallel()

	schema := validation.Schema{
		"email":    validation.Email(),
		"quantity": validation.PositiveInt(),
	}

	_, err := schema.Apply(map[string]any{
		"email":    "broken",
		"quantity": float64(-1),
	})
	require.Error(t, err)

	var issue *validation.Issue
	require.ErrorAs(t, err, &issue)
	assert.Equal(t, "email", issue.Path)
	assert.Equal(t, "email: invalid email address", issue.Error())
}

func TestSchemaOptionalFieldMayBeAbsent(t *testing.T) {
	t.Parallel()

	schema := validation.Schema{
		"email": validation.Email(),
		"phone": validation.Optional(validation.Phone()),
	}

	values, err := schema.Apply(map[string]any{"email": "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", values["email"])
	assert.NotContains(t, values, "phone")
}

func TestDecodeBodyDistinguishesMalformedJSON(t *testing.T) {
	t.Parallel()

	schema := validation.Schema{"email": validation.Email()}

	r := httptest.NewRequest("POST", "/v1/checkout", strings.NewReader("{not json"))
	_, err := validation.DecodeBody(r, schema)
	require.ErrorIs(t, err, validation.ErrInvalidJSON)

	r = httptest.NewRequest("POST", "/v1/checkout", strings.NewReader(`{"email":"bad"}`))
	_, err = validation.DecodeBody(r, schema)

	var issue *validation.Issue
	require.ErrorAs(t, err, &issue)
}

func TestSearchParams(t *testing.T) {
	t.Parallel()

	schema := validation.Schema{
		"page":  validation.Optional(validation.PositiveInt()),
		"sort":  validation.Optional(validation.OneOf("price", "name")),
		"limit": validation.Optional(validation.PositiveInt()),
	}

	r := httptest.NewRequest("GET", "/v1/products?page=2&sort=price", nil)
	values, err := validation.SearchParams(r, schema)
	require.NoError(t, err)
	assert.Equal(t, 2, values["page"])
	assert.Equal(t, "price", values["sort"])

	r = httptest.NewRequest("GET", "/v1/products?sort=surprise", nil)
	_, err = validation.SearchParams(r, schema)
	assert.Error(t, err)
}

func TestRouteParams(t *testing.T) {
	t.Parallel()

	lookup := func(name string) string {
		if name == "productID" {
			return "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
		}

		return ""
	}

	values, err := validation.RouteParams(lookup, validation.Schema{"productID": validation.UUID()})
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", values["productID"])

	_, err = validation.RouteParams(func(string) string { return "" }, validation.Schema{"productID": validation.UUID()})
	assert.Error(t, err)
}
