package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/glowbook-platform/internal/bookings"
	httpmiddleware "github.com/wolfman30/glowbook-platform/internal/http/middleware"
	"github.com/wolfman30/glowbook-platform/internal/tenancy"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	BookingsHandler *bookings.Handler
	MetricsHandler  http.Handler
	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck        func(ctx context.Context) error
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
	// CustomerAuthSecret switches customer identification from the gateway
	// header to signed bearer tokens.
	CustomerAuthSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthCheck))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Customer-scoped API routes
	if cfg.BookingsHandler != nil {
		r.Group(func(api chi.Router) {
			if cfg.RateLimiter != nil {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			if cfg.CustomerAuthSecret != "" {
				api.Use(httpmiddleware.CustomerJWT(cfg.CustomerAuthSecret))
			} else {
				api.Use(tenancy.CustomerMiddleware)
			}
			api.Mount("/v1/providers/{providerID}/bookings", cfg.BookingsHandler.Routes())
		})
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
