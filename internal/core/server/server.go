// Package server wires the HTTP surface and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolmap-api/internal/controller"
	"schoolmap-api/internal/core/config"
	"schoolmap-api/internal/core/health"
	"schoolmap-api/internal/core/middleware"
	"schoolmap-api/internal/core/router"
	"schoolmap-api/internal/dataset"
	"schoolmap-api/internal/filter"
	"schoolmap-api/internal/markers"
)

// Deps are the collaborators the server serves. Cache may be nil.
type Deps struct {
	Store  *dataset.Store
	Engine *filter.Engine
	Ctrl   *controller.Controller
	Layer  *markers.Layer
	Cache  router.ResponseCache
}

// Run sets up http and starts serving.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(deps.Store))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/query", router.HandleQuery(logger, deps.Engine, deps.Cache, cfg.CacheTTL, cfg.CacheOpTimeout))
	r.Get("/options", router.HandleOptions(deps.Engine))
	r.Route("/session", router.SessionRoutes(logger, deps.Ctrl, deps.Layer))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
