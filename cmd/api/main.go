package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/glowbook-platform/internal/api/router"
	"github.com/wolfman30/glowbook-platform/internal/app/bootstrap"
	"github.com/wolfman30/glowbook-platform/internal/bookings"
	appconfig "github.com/wolfman30/glowbook-platform/internal/config"
	httpmiddleware "github.com/wolfman30/glowbook-platform/internal/http/middleware"
	"github.com/wolfman30/glowbook-platform/internal/observability/metrics"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting glowbook-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("postgres is required for the booking API")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Warn("redis disabled; provider settings and quotas read straight from postgres")
	}

	metricsHandler, bookingMetrics := setupMetrics()
	service := bootstrap.BuildBookingService(pool, redisClient, cfg, logger, bookingMetrics)

	rc := routerConfig(cfg, logger, bookings.NewHandler(service, logger), metricsHandler, healthCheck(pool, redisClient))
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	if rc.RateLimiter != nil {
		rc.RateLimiter.StartEviction(evictCtx, 5*time.Minute, 10*time.Minute)
	}
	r := router.New(rc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

func routerConfig(cfg *appconfig.Config, logger *logging.Logger, handler *bookings.Handler, metricsHandler http.Handler, health func(context.Context) error) *router.Config {
	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return &router.Config{
		Logger:             logger,
		BookingsHandler:    handler,
		MetricsHandler:     metricsHandler,
		HealthCheck:        health,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CustomerAuthSecret: cfg.CustomerAuthSecret,
	}
}

// healthCheck treats Postgres as required and Redis as optional.
func healthCheck(pool *pgxpool.Pool, redisClient *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			return redisClient.Ping(ctx).Err()
		}
		return nil
	}
}
