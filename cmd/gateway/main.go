package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	inboundhttp "github.com/cartloom/storefront/internal/adapters/inbound/http"
	"github.com/cartloom/storefront/internal/adapters/outbound/commerce"
	"github.com/cartloom/storefront/internal/cache"
	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/dedup"
	"github.com/cartloom/storefront/internal/infrastructure"
	"github.com/cartloom/storefront/internal/ratelimit"
	"github.com/cartloom/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Init()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := infrastructure.NewStoreClient(cfg.Store, log)
	if err := store.Start(ctx); err != nil {
		// The connection is lazy and every store path fails open or loud
		// per operation; a dead store at boot is degraded, not fatal.
		log.Warn().Err(err).Msg("store unreachable at startup, continuing degraded")
	}
	defer store.Stop()

	cacheLayer := cache.New(store, log, cfg.Cache.Skip)
	limiter := ratelimit.New(store, log)
	deduplicator := dedup.New(store, log, cfg.Dedup)
	commerceClient := commerce.NewClient(cfg.Commerce, log)

	publicRouter := inboundhttp.NewRouter(inboundhttp.RouterConfig{
		Config:       *cfg,
		Logger:       log,
		Store:        store,
		Cache:        cacheLayer,
		Limiter:      limiter,
		Deduplicator: deduplicator,
		Commerce:     commerceClient,
	})

	adminRouter := inboundhttp.NewAdminRouter(inboundhttp.AdminRouterConfig{
		Logger: log,
		Cache:  cacheLayer,
	})

	publicServer := &http.Server{
		Addr:         cfg.HTTPServer.Addr(),
		Handler:      publicRouter,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	adminServer := &http.Server{
		Addr:         cfg.HTTPServer.AdminAddr(),
		Handler:      adminRouter,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrors := make(chan error, 2)

	go func() {
		log.Info().Str("address", publicServer.Addr).Msg("public server listening")
		serverErrors <- publicServer.ListenAndServe()
	}()

	go func() {
		log.Info().Str("address", adminServer.Addr).Msg("admin server listening")
		serverErrors <- adminServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("public server shutdown failed")
	}

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown failed")
	}

	log.Info().Msg("gateway stopped")
}
