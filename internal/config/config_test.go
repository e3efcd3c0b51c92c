package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	cfg := Load()

	req.Equal("8080", cfg.Port)
	req.Equal("development", cfg.Env)
	req.True(cfg.IsDevelopment())
	req.Equal([]string{"*"}, cfg.AllowedOrigins)
	req.Equal(256, cfg.SendQueueSize)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimitBurst)
	req.Equal(time.Second, cfg.RateLimitInterval)
}

func TestLoad_FromEnv(t *testing.T) {
	req := require.New(t)

	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "staging")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("SEND_QUEUE_SIZE", "64")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg := Load()

	req.Equal("9000", cfg.Port)
	req.Equal("staging", cfg.Env)
	req.False(cfg.IsDevelopment())
	req.Equal([]string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	req.Equal(64, cfg.SendQueueSize)
	req.Equal(10, cfg.RateLimitBurst)
	req.Equal(2*time.Second, cfg.RateLimitInterval)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	req := require.New(t)

	t.Setenv("SEND_QUEUE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")

	cfg := Load()

	req.Equal(256, cfg.SendQueueSize)
	req.Equal(5, cfg.RateLimitBurst)
	req.Equal(time.Second, cfg.RateLimitInterval)
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")

	require.Panics(t, func() { Load() })
}
