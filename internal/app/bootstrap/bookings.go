package bootstrap

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/glowbook-platform/internal/bookings"
	"github.com/wolfman30/glowbook-platform/internal/catalog"
	appconfig "github.com/wolfman30/glowbook-platform/internal/config"
	"github.com/wolfman30/glowbook-platform/internal/observability/metrics"
	"github.com/wolfman30/glowbook-platform/internal/provider"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
	"github.com/wolfman30/glowbook-platform/internal/subscription"
	"github.com/wolfman30/glowbook-platform/internal/travel"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// BuildSettingsStore reads provider settings from Postgres, cached in Redis
// when a client is available.
func BuildSettingsStore(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) provider.SettingsStore {
	source := provider.NewPostgresSettings(pool)
	if redisClient == nil {
		return source
	}
	return provider.NewCachedSettings(redisClient, source, cfg.ProviderSettingsTTL, logger)
}

// BuildBookingService wires the booking pipeline over Postgres and Redis.
func BuildBookingService(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger, m *metrics.BookingMetrics) *bookings.Service {
	settings := BuildSettingsStore(pool, redisClient, cfg, logger)
	return bookings.NewService(bookings.Deps{
		Catalog:       catalog.NewPostgresStore(pool),
		Providers:     provider.NewPostgresDirectory(pool),
		Settings:      settings,
		Platform:      provider.NewStaticPlatform(cfg),
		Customers:     bookings.NewPostgresCustomers(pool),
		Subscriptions: subscription.NewLimitChecker(pool, redisClient, logger),
		Availability:  scheduling.NewPostgresAvailability(pool),
		Override:      provider.NewOverridePolicy(settings),
		Travel:        travel.NewEstimator(pool, cfg.TravelAverageSpeedKMH, cfg.TravelMaxBufferMinutes),
		Repository:    bookings.NewPostgresRepository(pool),
		StaffPicker:   bookings.NewRandomStaffPicker(time.Now().UnixNano()),
		Metrics:       m,
		Logger:        logger,
		LookupTimeout: cfg.LookupTimeout,
	})
}
