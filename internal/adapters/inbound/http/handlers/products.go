package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/validation"
	"github.com/cartloom/storefront/pkg/logger"
)

var (
	productListSchema = validation.Schema{
		"page":  validation.Optional(validation.PositiveInt()),
		"limit": validation.Optional(validation.PositiveInt()),
		"sort":  validation.Optional(validation.OneOf("price", "name", "newest")),
	}

	productParamSchema = validation.Schema{
		"slug": validation.Slug(),
	}
)

// ProductsHandler serves the catalog read path: cache-aside in front of
// the commerce backend, so a catalog browse never waits on a cold
// upstream twice in a row.
type ProductsHandler struct {
	cache    *cache.Cache
	commerce *commerce.Client
	log      logger.Logger
}

func NewProductsHandler(cacheLayer *cache.Cache, commerceClient *commerce.Client, log logger.Logger) *ProductsHandler {
	return &ProductsHandler{
		cache:    cacheLayer,
		commerce: commerceClient,
		log:      log.Component("products"),
	}
}

func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := validation.SearchParams(r, productListSchema)
	if err != nil {
		BadRequest(w, err.Error())

		return
	}

	query := commerce.ProductQuery{Page: 1, Limit: 24}
	if page, ok := params["page"].(int); ok {
		query.Page = page
	}
	if limit, ok := params["limit"].(int); ok {
		query.Limit = limit
	}
	if sort, ok := params["sort"].(string); ok {
		query.Sort = sort
	}

	key := cache.ProductListKey(fmt.Sprintf("p%d-l%d-%s", query.Page, query.Limit, query.Sort))

	result, err := cache.Fetch(r.Context(), h.cache, key, cache.TTLShort,
		func(ctx context.Context) (commerce.ProductPage, error) {
			return h.commerce.ListProducts(ctx, query)
		})
	if err != nil {
		InternalError(w, r, h.log, err, "products.list")

		return
	}

	w.Header().Set("X-Cache", string(result.Source))
	JSON(w, r, http.StatusOK, result.Data)
}

func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	params, err := validation.RouteParams(func(name string) string {
		return chi.URLParam(r, name)
	}, productParamSchema)
	if err != nil {
		BadRequest(w, err.Error())

		return
	}

	slug := params["slug"].(string)

	result, err := cache.Fetch(r.Context(), h.cache, cache.ProductKey(slug), cache.TTLMedium,
		func(ctx context.Context) (commerce.Product, error) {
			return h.commerce.GetProduct(ctx, slug)
		})
	if err != nil {
		if isUpstreamNotFound(err) {
			NotFound(w, "product not found")

			return
		}

		InternalError(w, r, h.log, err, "products.get")

		return
	}

	w.Header().Set("X-Cache", string(result.Source))
	JSON(w, r, http.StatusOK, result.Data)
}

// isUpstreamNotFound sniffs the status the commerce client embeds in
// its error messages.
func isUpstreamNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404 Not Found")
}
