// Package handler serves run status over HTTP while a generation run is in
// progress.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/corpus-generator/internal/middleware"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

// RouterConfig wires handlers and access policy into the status router.
type RouterConfig struct {
	Health   *HealthHandler
	Progress *ProgressHandler
	Stream   *StreamHandler
	// Artifacts is nil when event publishing is disabled.
	Artifacts *ArtifactHandler

	// JWTSecret enables bearer authentication on /api/v1 when set.
	JWTSecret         string
	CORSOrigins       string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the status server routes.
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireScope(middleware.ScopeRead))
		}
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/progress", cfg.Progress.Get)
		if cfg.Stream != nil {
			r.Get("/progress/stream", cfg.Stream.Stream)
		}
		if cfg.Artifacts != nil {
			r.Get("/runs/{runID}/artifacts", cfg.Artifacts.List)
		}
	})

	return r
}
