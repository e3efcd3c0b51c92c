package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string

	// WebSocket connection tuning
	AllowedOrigins []string
	SendQueueSize  int
	MaxMessageSize int64

	// Per-connection inbound rate limiting
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		SendQueueSize:     getEnvInt("SEND_QUEUE_SIZE", 256),
		MaxMessageSize:    int64(getEnvInt("MAX_MESSAGE_SIZE", 4096)),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 5),
		RateLimitInterval: getEnvDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
	}

	// Parse allowed origins (comma-separated; "*" allows all)
	if origins := getEnv("ALLOWED_ORIGINS", "*"); origins != "" {
		for _, entry := range strings.Split(origins, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
			}
		}
	}

	// In production, require a relational database
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
