package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/AdDoha0/realtime-chat/internal/chat"
	"github.com/AdDoha0/realtime-chat/internal/store"
)

// Room and user names: alphanumeric, hyphens, underscores, 1-50 chars.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc      *chat.Service
	store    store.MessageStore
	cache    *store.RedisStore // optional
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler with the given dependencies.
// allowedOrigins governs which origins may open WebSocket connections;
// "*" allows all.
func NewHandler(svc *chat.Service, st store.MessageStore, cache *store.RedisStore, log zerolog.Logger, allowedOrigins []string) *Handler {
	h := &Handler{
		svc:   svc,
		store: st,
		cache: cache,
		log:   log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginChecker(allowedOrigins, log),
	}
	return h
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// identity extracts the authenticated username injected by the fronting
// auth layer, either as a header or a query parameter.
func identity(r *http.Request) string {
	if user := r.Header.Get("X-Chat-User"); user != "" {
		return user
	}
	return r.URL.Query().Get("user")
}
