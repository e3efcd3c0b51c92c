package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/AdDoha0/realtime-chat/internal/api"
	"github.com/AdDoha0/realtime-chat/internal/chat"
	"github.com/AdDoha0/realtime-chat/internal/config"
	"github.com/AdDoha0/realtime-chat/internal/render"
	"github.com/AdDoha0/realtime-chat/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the message store: PostgreSQL when configured, SQLite
	// otherwise
	var msgStore store.MessageStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		msgStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		msgStore = sqliteStore
		logger.Info().Msg("using SQLite store")
	}
	defer msgStore.Close()

	// Initialize optional Redis cache
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Assemble the chat engine
	registry := chat.NewRegistry(logger)
	presence := chat.NewPresence()
	svc := chat.NewService(msgStore, redisStore, registry, presence, render.NewJSON(), logger, chat.Options{
		SendQueueSize:     cfg.SendQueueSize,
		MaxMessageSize:    cfg.MaxMessageSize,
		RateLimitBurst:    cfg.RateLimitBurst,
		RateLimitInterval: cfg.RateLimitInterval,
	})

	// Create router
	router := api.NewRouter(logger, cfg, svc, msgStore, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Stop accepting new connections and drop the live ones
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
