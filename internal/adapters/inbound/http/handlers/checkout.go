package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/dedup"
	"github.com/cartloom/storefront/internal/ratelimit"
	"github.com/cartloom/storefront/internal/validation"
	"github.com/cartloom/storefront/pkg/logger"
)

var checkoutSchema = validation.Schema{
	"cartId": validation.NonEmpty(),
	"email":  validation.Email(),
	"userId": validation.Optional(validation.UUID()),
}

// CheckoutHandler places orders. A submission passes validation, the
// sensitive rate-limit tier and the duplicate guard before it reaches
// the commerce backend.
type CheckoutHandler struct {
	limiter      *ratelimit.Limiter
	deduplicator *dedup.Deduplicator
	commerce     *commerce.Client
	log          logger.Logger
}

func NewCheckoutHandler(
	limiter *ratelimit.Limiter,
	deduplicator *dedup.Deduplicator,
	commerceClient *commerce.Client,
	log logger.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		limiter:      limiter,
		deduplicator: deduplicator,
		commerce:     commerceClient,
		log:          log.Component("checkout"),
	}
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := validation.DecodeBody(r, checkoutSchema)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidJSON) {
			BadRequest(w, "invalid JSON body")

			return
		}

		BadRequest(w, err.Error())

		return
	}

	email, _ := fields["email"].(string)
	cartID, _ := fields["cartId"].(string)
	userID, _ := fields["userId"].(string)

	status := h.limiter.Check(r.Context(), "checkout:"+email, ratelimit.TierSensitive, "checkout")
	if !status.Allowed {
		RateLimited(w, status)

		return
	}

	order, err := dedup.Deduplicated(r.Context(), h.deduplicator, map[string]any{
		"cartId": cartID,
		"email":  email,
	}, userID, "checkout", func(ctx context.Context) (commerce.Order, error) {
		return h.commerce.CreateOrder(ctx, commerce.OrderRequest{
			CartID: cartID,
			Email:  email,
			UserID: userID,
		})
	})
	if err != nil {
		var dupErr *dedup.DuplicateRequestError
		switch {
		case errors.As(err, &dupErr):
			Conflict(w, "This request was already submitted and is being processed")
		case errors.Is(err, dedup.ErrStoreUnavailable):
			ServiceUnavailable(w, "Checkout is temporarily unavailable, please try again shortly")
		default:
			InternalError(w, r, h.log, err, "checkout.create")
		}

		return
	}

	JSON(w, r, http.StatusCreated, order)
}
