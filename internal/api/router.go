package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"semsql/internal/middleware"
)

// RouterConfig controls the middleware stack in front of the handlers.
type RouterConfig struct {
	Logger             *slog.Logger
	RateLimit          middleware.RateLimitConfig
	CORSAllowedOrigins []string
}

// NewRouter mounts the handler under /v1 with request IDs, access logging,
// panic recovery and CORS. /v1 routes are rate limited; /healthz is not.
// The rate limiter's sweeper stops when ctx is done.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.PrincipalHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(ctx, cfg.RateLimit))
		}
		r.Use(middleware.Principal)

		r.Post("/validate", h.Validate)
		r.Post("/validate/batch", h.ValidateBatch)
		r.Post("/substitute", h.Substitute)
		r.Post("/prepare", h.Prepare)
		r.Post("/row-filters", h.RowFilters)
		r.Get("/layer", h.Layer)
	})

	return r
}
