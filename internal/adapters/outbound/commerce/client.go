// Package commerce talks to the upstream commerce backend. The backend
// is an opaque HTTP JSON service; every call goes through the timeout
// and retry wrappers so a slow upstream degrades predictably.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/pkg/logger"
	"github.com/cartloom/storefront/pkg/resilience"
)

type (
	Product struct {
		ID         string `json:"id"`
		Slug       string `json:"slug"`
		Name       string `json:"name"`
		PriceCents int64  `json:"priceCents"`
		Currency   string `json:"currency"`
		InStock    bool   `json:"inStock"`
	}

	ProductPage struct {
		Items []Product `json:"items"`
		Total int       `json:"total"`
	}

	ProductQuery struct {
		Page  int
		Limit int
		Sort  string
	}

	OrderRequest struct {
		CartID string `json:"cartId"`
		Email  string `json:"email"`
		UserID string `json:"userId,omitempty"`
	}

	Order struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		TotalCents int64  `json:"totalCents"`
	}

	ReviewRequest struct {
		ProductID string `json:"productId"`
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
	}

	Review struct {
		ID        string `json:"id"`
		ProductID string `json:"productId"`
		Rating    int    `json:"rating"`
	}

	Client struct {
		baseURL    string
		httpClient *http.Client
		maxRetries uint
		log        logger.Logger
	}
)

func NewClient(cfg config.Commerce, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		log:        log.Component("commerce"),
	}
}

// ListProducts fetches a product page. Reads are idempotent, so the
// whole call is retried with exponential backoff.
func (c *Client) ListProducts(ctx context.Context, query ProductQuery) (ProductPage, error) {
	params := url.Values{}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Sort != "" {
		params.Set("sort", query.Sort)
	}

	endpoint := c.baseURL + "/products"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	return resilience.Retry(ctx, resilience.RetryConfig{
		Op:            "commerce.ListProducts",
		MaxRetries:    c.maxRetries,
		AttemptBudget: resilience.BudgetExternalAPI,
	}, func(ctx context.Context) (ProductPage, error) {
		return doJSON[ProductPage](ctx, c, http.MethodGet, endpoint, nil)
	})
}

func (c *Client) GetProduct(ctx context.Context, slug string) (Product, error) {
	endpoint := c.baseURL + "/products/" + url.PathEscape(slug)

	return resilience.Retry(ctx, resilience.RetryConfig{
		Op:            "commerce.GetProduct",
		MaxRetries:    c.maxRetries,
		AttemptBudget: resilience.BudgetExternalAPI,
	}, func(ctx context.Context) (Product, error) {
		return doJSON[Product](ctx, c, http.MethodGet, endpoint, nil)
	})
}

// CreateOrder places an order. Order creation is not idempotent
// upstream, so it gets a single deadlined attempt and no retry; the
// request deduplicator above this layer guards against resubmission.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	endpoint := c.baseURL + "/orders"

	return resilience.Do(ctx, resilience.BudgetExternalAPI, "commerce.CreateOrder",
		func(ctx context.Context) (Order, error) {
			return doJSON[Order](ctx, c, http.MethodPost, endpoint, req)
		})
}

func (c *Client) CreateReview(ctx context.Context, req ReviewRequest) (Review, error) {
	endpoint := c.baseURL + "/reviews"

	return resilience.Do(ctx, resilience.BudgetExternalAPI, "commerce.CreateReview",
		func(ctx context.Context) (Review, error) {
			return doJSON[Review](ctx, c, http.MethodPost, endpoint, req)
		})
}

func doJSON[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var result T

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return result, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return result, fmt.Errorf("building %s request: %w", endpoint, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("calling commerce backend: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, upstreamError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decoding commerce response: %w", err)
	}

	return result, nil
}

// upstreamError keeps the status text in the message so the error
// classifier can tell a 503 from a 422.
func upstreamError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if len(snippet) == 0 {
		return fmt.Errorf("commerce backend returned %d %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return fmt.Errorf("commerce backend returned %d %s: %s",
		resp.StatusCode, http.StatusText(resp.StatusCode), string(snippet))
}
