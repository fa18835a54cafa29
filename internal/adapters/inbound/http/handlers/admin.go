package handlers

import (
	"errors"
	"net/http"

	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/validation"
	"github.com/cartloom/storefront/pkg/logger"
)

var purgeSchema = validation.Schema{
	"domain": validation.OneOf("product", "products:list", "reviews:product", "campaign", "quote"),
}

// AdminHandler exposes the internal cache-purge endpoint. It is mounted
// on the admin router only, never on the public surface.
type AdminHandler struct {
	cache *cache.Cache
	log   logger.Logger
}

func NewAdminHandler(cacheLayer *cache.Cache, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		cache: cacheLayer,
		log:   log.Component("admin"),
	}
}

func (h *AdminHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	fields, err := validation.DecodeBody(r, purgeSchema)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidJSON) {
			BadRequest(w, "invalid JSON body")

			return
		}

		BadRequest(w, err.Error())

		return
	}

	domain := fields["domain"].(string)
	deleted := h.cache.InvalidatePattern(r.Context(), cache.PurgePattern(domain))

	reqLogger := h.log.WithContext(r.Context())
	reqLogger.Info().
		Str("domain", domain).
		Int64("deleted", deleted).
		Msg("cache purged")

	JSON(w, r, http.StatusOK, map[string]any{
		"domain":  domain,
		"deleted": deleted,
	})
}
