// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/stayzen/stayzen/internal/security"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Storage
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)
	RedisURL    string // Redis connection string for job locks (optional, uses in-memory if not set)

	// Payment provider
	StripeAPIKey          string
	ProviderWebhookSecret string // HMAC secret for verifying inbound provider callbacks

	// Escrow release
	SchedulerInterval time.Duration // how often the release sweep runs
	ReleaseOffset     time.Duration // delay after checkout before funds are released
	LockTTL           time.Duration // job lock time-to-live

	// Notifications
	NotifyURL    string // optional endpoint for state-transition notices
	NotifySecret string // HMAC secret for signing outbound notices

	// Security
	AdminSecret  string // Admin API secret (lock listing, force-release)
	RateLimitRPS int

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultSchedulerInterval = 5 * time.Second
	DefaultReleaseOffset     = 24 * time.Hour
	DefaultLockTTL           = 30 * time.Second
	DefaultRateLimit         = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RedisURL:              os.Getenv("REDIS_URL"),    // Optional, uses in-memory locks if not set
		StripeAPIKey:          os.Getenv("STRIPE_API_KEY"),
		ProviderWebhookSecret: os.Getenv("PROVIDER_WEBHOOK_SECRET"),
		SchedulerInterval:     getEnvDuration("SCHEDULER_INTERVAL", DefaultSchedulerInterval),
		ReleaseOffset:         getEnvDuration("RELEASE_OFFSET", DefaultReleaseOffset),
		LockTTL:               getEnvDuration("LOCK_TTL", DefaultLockTTL),
		NotifyURL:             os.Getenv("NOTIFY_URL"),
		NotifySecret:          os.Getenv("NOTIFY_SECRET"),
		AdminSecret:           os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:          int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.IsProduction() {
		if c.ProviderWebhookSecret == "" {
			return fmt.Errorf("PROVIDER_WEBHOOK_SECRET is required in production")
		}
		if c.AdminSecret == "" {
			return fmt.Errorf("ADMIN_SECRET is required in production")
		}
		// Notices are posted server-side; a misconfigured target must not
		// point the process at the internal network.
		if c.NotifyURL != "" {
			if err := security.ValidateEndpointURL(c.NotifyURL); err != nil {
				return fmt.Errorf("NOTIFY_URL is not a safe endpoint: %w", err)
			}
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
