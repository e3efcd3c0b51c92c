package models

// Message represents a persisted chat message.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room_id"`
	RoomName  string `json:"room"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Timestamp int64  `json:"ts"` // Unix ms
}
