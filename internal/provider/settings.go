package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// Settings are the per-provider booking policies.
type Settings struct {
	ProviderID string `json:"provider_id"`
	// TaxRate is a percentage; nil means use the platform default.
	TaxRate             *float64           `json:"tax_rate,omitempty"`
	ServiceFee          *pricing.FeeConfig `json:"service_fee,omitempty"`
	TippingEnabled      bool               `json:"tipping_enabled"`
	AllowDoubleBooking  bool               `json:"allow_double_booking"`
	AutoConfirm         bool               `json:"auto_confirm"`
	MinimumMobileAmount float64            `json:"minimum_mobile_amount"`
}

// DefaultSettings is used when a provider never saved settings.
func DefaultSettings(providerID string) *Settings {
	return &Settings{ProviderID: providerID}
}

// SettingsStore returns provider settings.
type SettingsStore interface {
	Settings(ctx context.Context, providerID string) (*Settings, error)
}

// PostgresSettings reads the provider_settings table.
type PostgresSettings struct {
	db rowQuerier
}

func NewPostgresSettings(pool *pgxpool.Pool) *PostgresSettings {
	if pool == nil {
		panic("provider: pgx pool required")
	}
	return &PostgresSettings{db: pool}
}

func newPostgresSettingsWithQuerier(q rowQuerier) *PostgresSettings {
	return &PostgresSettings{db: q}
}

func (s *PostgresSettings) Settings(ctx context.Context, providerID string) (*Settings, error) {
	query := `
		SELECT tax_rate, fee_type, fee_value, fee_min_booking_amount, fee_max_amount,
			tipping_enabled, allow_double_booking, auto_confirm, minimum_mobile_amount
		FROM provider_settings
		WHERE provider_id::text = $1
	`
	var (
		cfg       = Settings{ProviderID: providerID}
		feeType   *string
		feeValue  *float64
		feeMin    *float64
		feeMaxAmt *float64
	)
	err := s.db.QueryRow(ctx, query, providerID).Scan(
		&cfg.TaxRate, &feeType, &feeValue, &feeMin, &feeMaxAmt,
		&cfg.TippingEnabled, &cfg.AllowDoubleBooking, &cfg.AutoConfirm, &cfg.MinimumMobileAmount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(providerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("provider: select settings: %w", err)
	}
	if feeType != nil && feeValue != nil {
		cfg.ServiceFee = &pricing.FeeConfig{Type: pricing.FeeType(*feeType), Value: *feeValue, MaxFeeAmount: feeMaxAmt}
		if feeMin != nil {
			cfg.ServiceFee.MinBookingAmount = *feeMin
		}
	}
	return &cfg, nil
}

// CachedSettings keeps provider settings in Redis in front of a source
// store. Redis failures fall through to the source.
type CachedSettings struct {
	redis  *redis.Client
	source SettingsStore
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedSettings wraps source with a Redis cache.
func NewCachedSettings(redisClient *redis.Client, source SettingsStore, ttl time.Duration, logger *logging.Logger) *CachedSettings {
	if source == nil {
		panic("provider: settings source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSettings{redis: redisClient, source: source, ttl: ttl, logger: logger}
}

func (s *CachedSettings) key(providerID string) string {
	return fmt.Sprintf("provider:settings:%s", providerID)
}

func (s *CachedSettings) Settings(ctx context.Context, providerID string) (*Settings, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, s.key(providerID)).Bytes()
		switch {
		case err == nil:
			var cfg Settings
			jsonErr := json.Unmarshal(data, &cfg)
			if jsonErr == nil {
				return &cfg, nil
			}
			s.logger.Warn("discarding unreadable cached settings", "provider_id", providerID, "error", jsonErr)
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn("settings cache read failed", "provider_id", providerID, "error", err)
		}
	}

	cfg, err := s.source.Settings(ctx, providerID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cfg)
	return cfg, nil
}

func (s *CachedSettings) store(ctx context.Context, cfg *Settings) {
	if s.redis == nil || cfg == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		s.logger.Warn("settings marshal failed", "provider_id", cfg.ProviderID, "error", err)
		return
	}
	if err := s.redis.Set(ctx, s.key(cfg.ProviderID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("settings cache write failed", "provider_id", cfg.ProviderID, "error", err)
	}
}

// OverridePolicy answers double-booking questions from provider settings.
type OverridePolicy struct {
	settings SettingsStore
}

func NewOverridePolicy(settings SettingsStore) *OverridePolicy {
	return &OverridePolicy{settings: settings}
}

func (p *OverridePolicy) AllowsDoubleBooking(ctx context.Context, providerID string) (bool, error) {
	cfg, err := p.settings.Settings(ctx, providerID)
	if err != nil {
		return false, err
	}
	return cfg.AllowDoubleBooking, nil
}
