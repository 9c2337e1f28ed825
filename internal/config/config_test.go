package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOOKUP_TIMEOUT", "")
	t.Setenv("DEFAULT_TAX_RATE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LookupTimeout != 750*time.Millisecond {
		t.Fatalf("expected default lookup timeout, got %s", cfg.LookupTimeout)
	}
	if cfg.DefaultTaxRate != 0 {
		t.Fatalf("expected no default tax rate, got %v", cfg.DefaultTaxRate)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.OutboxBatchSize != 25 {
		t.Fatalf("expected default outbox batch size, got %d", cfg.OutboxBatchSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("LOOKUP_TIMEOUT", "2s")
	t.Setenv("DEFAULT_TAX_RATE", "15")
	t.Setenv("PLATFORM_FEE_TYPE", " Percentage ")
	t.Setenv("PLATFORM_FEE_VALUE", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.LookupTimeout != 2*time.Second {
		t.Fatalf("expected lookup timeout override, got %s", cfg.LookupTimeout)
	}
	if cfg.DefaultTaxRate != 15 {
		t.Fatalf("expected tax override, got %v", cfg.DefaultTaxRate)
	}
	if cfg.PlatformFeeType != "percentage" || cfg.PlatformFeeValue != 2.5 {
		t.Fatalf("unexpected platform fee %q %v", cfg.PlatformFeeType, cfg.PlatformFeeValue)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis TLS enabled")
	}
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("expected invalid burst to fall back to default, got %d", cfg.RateLimitBurst)
	}
}
