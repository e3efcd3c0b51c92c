package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AdDoha0/realtime-chat/internal/chat"
	"github.com/AdDoha0/realtime-chat/internal/models"
)

const defaultHistoryLimit = 30

// RoomInfo represents a room in API responses.
type RoomInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MessageCount int64  `json:"message_count"`
	OnlineCount  int    `json:"online_count"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Timestamp int64  `json:"ts"`
}

// RoomMessagesResponse represents the room history response.
type RoomMessagesResponse struct {
	Room     RoomInfo          `json:"room"`
	Messages []MessageResponse `json:"messages"`
}

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// PostMessageRequest represents the HTTP post message request.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// PostMessageResponse represents the post message response.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// ListRooms handles listing all rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	infos := make([]RoomInfo, len(rooms))
	for i, room := range rooms {
		infos[i] = RoomInfo{
			ID:           room.ID.String(),
			Name:         room.Name,
			MessageCount: room.MessageCount,
			OnlineCount:  h.svc.OnlineCount(room.Name),
		}
	}

	h.JSON(w, http.StatusOK, map[string][]RoomInfo{"rooms": infos})
}

// CreateRoom handles room creation.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !nameRegex.MatchString(req.Name) {
		h.Error(w, http.StatusBadRequest, "name must be 1-50 characters, alphanumeric with hyphens and underscores only")
		return
	}

	if existing, err := h.store.FindRoom(r.Context(), req.Name); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	} else if existing != nil {
		h.Error(w, http.StatusConflict, "room already exists")
		return
	}

	room, err := h.store.CreateRoom(r.Context(), req.Name)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.JSON(w, http.StatusCreated, RoomInfo{
		ID:   room.ID.String(),
		Name: room.Name,
	})
}

// GetRoomMessages handles the room history fetch performed on page load:
// the most recent messages, newest first. Served from the Redis cache
// when possible, falling back to the message store.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "room")

	room, err := h.store.FindRoom(r.Context(), roomName)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	messages := h.recentMessages(r, room, limit)

	msgResponses := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		msgResponses[i] = MessageResponse{
			ID:        msg.ID,
			Author:    msg.Author,
			Body:      msg.Body,
			Timestamp: msg.Timestamp,
		}
	}

	h.JSON(w, http.StatusOK, RoomMessagesResponse{
		Room: RoomInfo{
			ID:           room.ID.String(),
			Name:         room.Name,
			MessageCount: room.MessageCount,
			OnlineCount:  h.svc.OnlineCount(room.Name),
		},
		Messages: msgResponses,
	})
}

func (h *Handler) recentMessages(r *http.Request, room *models.Room, limit int) []models.Message {
	if h.cache != nil {
		cached, err := h.cache.RecentMessages(r.Context(), room.ID.String(), limit)
		if err != nil {
			h.log.Debug().Err(err).Str("room", room.Name).Msg("message cache read failed")
		} else if len(cached) > 0 {
			return cached
		}
	}

	messages, err := h.store.RecentMessages(r.Context(), room.ID.String(), limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room.Name).Msg("history fetch failed")
		return nil
	}
	return messages
}

// PostMessage handles posting a message over plain HTTP. The message is
// persisted and broadcast to the room's live connections exactly as a
// WebSocket message would be.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		h.Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	roomName := chi.URLParam(r, "room")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Body) > 4096 {
		h.Error(w, http.StatusUnprocessableEntity, "body too long (max 4096 bytes)")
		return
	}

	msg, err := h.svc.Post(r.Context(), roomName, user, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRoomNotFound):
			h.Error(w, http.StatusNotFound, "room not found")
		case errors.Is(err, chat.ErrMalformedInput):
			h.Error(w, http.StatusBadRequest, "body is required")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}

	h.JSON(w, http.StatusCreated, PostMessageResponse{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
	})
}
