package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/glowbook-platform/cmd/mainconfig"
	"github.com/wolfman30/glowbook-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/glowbook-platform/internal/config"
	"github.com/wolfman30/glowbook-platform/internal/events"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// outbox-worker relays committed booking events from the outbox table to SQS.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "outbox-worker")

	if strings.TrimSpace(cfg.BookingEventsQueueURL) == "" {
		logger.Error("BOOKING_EVENTS_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("postgres is required for the outbox worker")
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	publisher := events.NewSQSPublisher(mainconfig.NewSQSClient(awsCfg, cfg), cfg.BookingEventsQueueURL)

	deliverer := events.NewDeliverer(events.NewOutboxStore(pool), publisher, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)

	logger.Info("outbox worker started",
		"queue_url", cfg.BookingEventsQueueURL,
		"batch_size", cfg.OutboxBatchSize,
		"interval", cfg.OutboxPollInterval.String(),
	)
	deliverer.Start(ctx)
	logger.Info("outbox worker stopped")
}
