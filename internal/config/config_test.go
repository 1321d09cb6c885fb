package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, 5*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "10s")
	t.Setenv("RELEASE_OFFSET", "48h")
	t.Setenv("LOCK_TTL", "1m")
	t.Setenv("RATE_LIMIT_RPS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 48*time.Hour, cfg.ReleaseOffset)
	assert.Equal(t, time.Minute, cfg.LockTTL)
	assert.Equal(t, 250, cfg.RateLimitRPS)
}

func TestLoadIgnoresMalformedDuration(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedulerInterval, cfg.SchedulerInterval)
}

func TestValidateProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{
		Env:               "production",
		SchedulerInterval: time.Second,
		LockTTL:           time.Second,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_WEBHOOK_SECRET")

	cfg.ProviderWebhookSecret = "whsec"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_SECRET")

	cfg.AdminSecret = "admin"
	assert.NoError(t, cfg.Validate())
}

func TestValidateProductionRejectsUnsafeNotifyURL(t *testing.T) {
	cfg := &Config{
		Env:                   "production",
		SchedulerInterval:     time.Second,
		LockTTL:               time.Second,
		ProviderWebhookSecret: "whsec",
		AdminSecret:           "admin",
		NotifyURL:             "http://169.254.169.254/latest/meta-data",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTIFY_URL")

	cfg.NotifyURL = "https://203.0.113.10/stayzen"
	assert.NoError(t, cfg.Validate())

	// Development keeps loopback targets usable.
	cfg.Env = "development"
	cfg.NotifyURL = "http://localhost:9000/notices"
	assert.NoError(t, cfg.Validate())
}
