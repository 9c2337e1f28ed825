package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// ProviderSettingsTTL bounds how long provider settings stay cached in Redis.
	ProviderSettingsTTL time.Duration
	// LookupTimeout caps every external lookup that has a safe default
	// (tax default, travel buffer, override policy, subscription quota).
	LookupTimeout time.Duration

	// Platform-wide pricing fallbacks.
	DefaultTaxRate        float64
	PlatformFeeType       string
	PlatformFeeValue      float64
	PlatformFeeMinBooking float64
	PlatformFeeMax        float64

	// Travel buffer estimation for house calls.
	TravelAverageSpeedKMH  float64
	TravelMaxBufferMinutes int

	// CustomerAuthSecret enables HMAC bearer tokens for customers. When empty
	// the gateway's X-Customer-ID header is trusted instead.
	CustomerAuthSecret string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	BookingEventsQueueURL string
	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ProviderSettingsTTL: getEnvAsDuration("PROVIDER_SETTINGS_TTL", 5*time.Minute),
		LookupTimeout:       getEnvAsDuration("LOOKUP_TIMEOUT", 750*time.Millisecond),

		DefaultTaxRate:        getEnvAsFloat("DEFAULT_TAX_RATE", 0),
		PlatformFeeType:       strings.ToLower(strings.TrimSpace(getEnv("PLATFORM_FEE_TYPE", ""))),
		PlatformFeeValue:      getEnvAsFloat("PLATFORM_FEE_VALUE", 0),
		PlatformFeeMinBooking: getEnvAsFloat("PLATFORM_FEE_MIN_BOOKING", 0),
		PlatformFeeMax:        getEnvAsFloat("PLATFORM_FEE_MAX", 0),

		TravelAverageSpeedKMH:  getEnvAsFloat("TRAVEL_AVERAGE_SPEED_KMH", 30),
		TravelMaxBufferMinutes: getEnvAsInt("TRAVEL_MAX_BUFFER_MINUTES", 90),

		CustomerAuthSecret: getEnv("CUSTOMER_AUTH_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		OutboxPollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:       getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
