package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AdDoha0/realtime-chat/internal/chat"
)

// ServeWS upgrades the request to a WebSocket connection and joins the
// caller to the room named in the route. The connection lives until the
// client leaves, the transport fails, or the server shuts down.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	if user == "" {
		h.Error(w, http.StatusUnauthorized, "user identity required")
		return
	}
	if !nameRegex.MatchString(user) {
		h.Error(w, http.StatusBadRequest, "invalid user name")
		return
	}

	roomName := chi.URLParam(r, "room")

	// Reject unknown rooms with a proper HTTP status before upgrading.
	room, err := h.store.FindRoom(r.Context(), roomName)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client, err := h.svc.Connect(r.Context(), user, roomName, conn)
	if err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, chat.ErrRoomNotFound) {
			code = websocket.ClosePolicyViolation
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, err.Error()))
		conn.Close()
		return
	}

	go h.svc.WriteLoop(client)
	go h.svc.ReadLoop(client)
}
