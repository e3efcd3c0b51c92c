// Package render turns broadcast payloads into transport-sendable bytes.
// The chat core treats rendering as an opaque step, so alternative
// renderers (for example server-rendered HTML fragments) can be swapped
// in without touching the broadcast engine.
package render

import (
	"encoding/json"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

// Renderer serializes outbound payloads for one connection.
type Renderer interface {
	RenderMessage(msg *models.Message) ([]byte, error)
	RenderPresence(onlineCount int) ([]byte, error)
}

type messagePayload struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Room      string `json:"room"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Timestamp int64  `json:"ts"`
}

type presencePayload struct {
	Type        string `json:"type"`
	OnlineCount int    `json:"online_count"`
}

// JSONRenderer serializes payloads as type-tagged JSON envelopes.
type JSONRenderer struct{}

// NewJSON creates a JSONRenderer.
func NewJSON() JSONRenderer { return JSONRenderer{} }

// RenderMessage serializes a chat message envelope.
func (JSONRenderer) RenderMessage(msg *models.Message) ([]byte, error) {
	return json.Marshal(messagePayload{
		Type:      "message",
		ID:        msg.ID,
		Room:      msg.RoomName,
		Author:    msg.Author,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
}

// RenderPresence serializes an online-count envelope.
func (JSONRenderer) RenderPresence(onlineCount int) ([]byte, error) {
	return json.Marshal(presencePayload{
		Type:        "presence",
		OnlineCount: onlineCount,
	})
}
