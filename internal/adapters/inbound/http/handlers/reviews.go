package handlers

import (
	"errors"
	"net/http"

	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/ratelimit"
	"github.com/cartloom/storefront/internal/validation"
	"github.com/cartloom/storefront/pkg/logger"
)

var reviewSchema = validation.Schema{
	"productId": validation.UUID(),
	"email":     validation.Email(),
	"rating":    validation.PositiveInt(),
	"comment":   validation.MaxLen(2000),
}

type ReviewsHandler struct {
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	commerce *commerce.Client
	log      logger.Logger
}

func NewReviewsHandler(
	limiter *ratelimit.Limiter,
	cacheLayer *cache.Cache,
	commerceClient *commerce.Client,
	log logger.Logger,
) *ReviewsHandler {
	return &ReviewsHandler{
		limiter:  limiter,
		cache:    cacheLayer,
		commerce: commerceClient,
		log:      log.Component("reviews"),
	}
}

func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := validation.DecodeBody(r, reviewSchema)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidJSON) {
			BadRequest(w, "invalid JSON body")

			return
		}

		BadRequest(w, err.Error())

		return
	}

	productID := fields["productId"].(string)
	email := fields["email"].(string)
	rating := fields["rating"].(int)
	comment, _ := fields["comment"].(string)

	if rating > 5 {
		BadRequest(w, "rating: must be between 1 and 5")

		return
	}

	status := h.limiter.Check(r.Context(), "reviews:"+email, ratelimit.TierAPI, "reviews.create")
	if !status.Allowed {
		RateLimited(w, status)

		return
	}

	review, err := h.commerce.CreateReview(r.Context(), commerce.ReviewRequest{
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	})
	if err != nil {
		InternalError(w, r, h.log, err, "reviews.create")

		return
	}

	// The product's cached review list is stale now.
	h.cache.Invalidate(r.Context(), cache.ReviewListKey(productID))

	JSON(w, r, http.StatusCreated, review)
}
