package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AdDoha0/realtime-chat/internal/api/middleware"
	"github.com/AdDoha0/realtime-chat/internal/chat"
	"github.com/AdDoha0/realtime-chat/internal/config"
	"github.com/AdDoha0/realtime-chat/internal/handlers"
	"github.com/AdDoha0/realtime-chat/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, svc *chat.Service, st store.MessageStore, cache *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS for the JSON endpoints (WebSocket origins are checked by the
	// upgrader against the configured allowlist)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Chat-User"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc, st, cache, logger, cfg.AllowedOrigins)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Live chat connections
	r.Get("/ws/chat/{room}", h.ServeWS)

	// Rooms and history
	r.Get("/rooms", h.ListRooms)
	r.Post("/rooms", h.CreateRoom)
	r.Get("/rooms/{room}/messages", h.GetRoomMessages)
	r.Post("/rooms/{room}/messages", h.PostMessage)

	return r
}
