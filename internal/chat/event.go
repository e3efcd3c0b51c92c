package chat

// Event is a broadcast payload fanned out to every subscriber of a room.
// It is a closed set: the write loop switches exhaustively over the two
// concrete types at delivery time.
type Event interface {
	isEvent()
}

// NewMessage announces a freshly persisted message by ID. Subscribers
// dereference the ID against the store before rendering, so the wire
// payload always reflects the persisted record.
type NewMessage struct {
	MessageID string
}

// PresenceUpdate announces the current online-user count of a room.
type PresenceUpdate struct {
	Count int
}

func (NewMessage) isEvent()     {}
func (PresenceUpdate) isEvent() {}
