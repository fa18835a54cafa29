package commerce_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/pkg/logger"
)

func newClient(baseURL string, maxRetries uint) *commerce.Client {
	return commerce.NewClient(config.Commerce{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger())
}

func TestListProducts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "price", r.URL.Query().Get("sort"))

		_ = json.NewEncoder(w).Encode(commerce.ProductPage{
			Items: []commerce.Product{{ID: "p-1", Slug: "anorak", Name: "Anorak", PriceCents: 12900, Currency: "EUR", InStock: true}},
			Total: 1,
		})
	}))
	defer server.Close()

	page, err := newClient(server.URL, 0).ListProducts(context.Background(), commerce.ProductQuery{Page: 2, Sort: "price"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "anorak", page.Items[0].Slug)
	assert.Equal(t, 1, page.Total)
}

func TestListProductsRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_ = json.NewEncoder(w).Encode(commerce.ProductPage{})
	}))
	defer server.Close()

	_, err := newClient(server.URL, 2).ListProducts(context.Background(), commerce.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetProductUpstreamErrorCarriesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newClient(server.URL, 0).GetProduct(context.Background(), "anorak")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 Service Unavailable")
	assert.Contains(t, err.Error(), "gone fishing")
}

func TestCreateOrderDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req commerce.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cart-1", req.CartID)

		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(server.URL, 3).CreateOrder(context.Background(), commerce.OrderRequest{CartID: "cart-1", Email: "a@b.co"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "order creation is not idempotent and must not be retried")
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		_ = json.NewEncoder(w).Encode(commerce.Order{ID: "order-1", Status: "pending", TotalCents: 12900})
	}))
	defer server.Close()

	order, err := newClient(server.URL, 0).CreateOrder(context.Background(), commerce.OrderRequest{CartID: "cart-1", Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "pending", order.Status)
}
