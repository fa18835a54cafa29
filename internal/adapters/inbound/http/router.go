package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartloom/storefront/internal/adapters/inbound/http/handlers"
	"github.com/cartloom/storefront/internal/adapters/inbound/http/middleware"
	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/dedup"
	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/internal/ratelimit"
	"github.com/cartloom/storefront/pkg/logger"
)

// RouterConfig holds the dependencies of the public router.
type RouterConfig struct {
	Config       config.ServiceConfig
	Logger       logger.Logger
	Store        *infrastructure.StoreClient
	Cache        *cache.Cache
	Limiter      *ratelimit.Limiter
	Deduplicator *dedup.Deduplicator
	Commerce     *commerce.Client

	// Registerer defaults to the global Prometheus registry.
	Registerer prometheus.Registerer
}

// NewRouter assembles the public HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.AccessLogger(cfg.Logger))
	router.Use(middleware.NewHTTPMetrics(registerer).Middleware)

	if cfg.Config.RateLimiting.Enabled {
		router.Use(middleware.GlobalRateLimiting(
			cfg.Config.RateLimiting,
			ratelimit.NewGCRAStore(cfg.Store),
			cfg.Logger,
		))
	}

	healthHandler := handlers.NewHealthHandler(cfg.Store)
	productsHandler := handlers.NewProductsHandler(cfg.Cache, cfg.Commerce, cfg.Logger)
	checkoutHandler := handlers.NewCheckoutHandler(cfg.Limiter, cfg.Deduplicator, cfg.Commerce, cfg.Logger)
	reviewsHandler := handlers.NewReviewsHandler(cfg.Limiter, cfg.Cache, cfg.Commerce, cfg.Logger)

	router.Route("/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)
		r.Get("/products", productsHandler.List)
		r.Get("/products/{slug}", productsHandler.Get)
		r.Post("/checkout", checkoutHandler.Create)
		r.Post("/reviews", reviewsHandler.Create)
	})

	return router
}

// AdminRouterConfig holds the dependencies of the internal admin router.
// It is intended to listen on a separate internal port.
type AdminRouterConfig struct {
	Logger logger.Logger
	Cache  *cache.Cache

	// Gatherer defaults to the global Prometheus registry.
	Gatherer prometheus.Gatherer
}

// NewAdminRouter assembles the internal admin surface: cache purges and
// the metrics scrape endpoint.
func NewAdminRouter(cfg AdminRouterConfig) http.Handler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.AccessLogger(cfg.Logger))

	adminHandler := handlers.NewAdminHandler(cfg.Cache, cfg.Logger)

	router.Post("/admin/v1/cache/purge", adminHandler.PurgeCache)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return router
}
