package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/AdDoha0/realtime-chat/internal/metrics"
)

// Registry maps room names to the live set of subscribed connection
// handles and fans broadcast events out to them. It is created once at
// process start, shared by every connection handler, and torn down via
// Close at shutdown.
//
// The registry mutex only guards the room map; each room carries its own
// lock so traffic in one room never blocks subscriptions in another.
// Broadcast snapshots the subscriber set under the room lock and delivers
// outside it, so a slow client cannot stall concurrent joins or leaves.
type Registry struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomSubscribers
}

type roomSubscribers struct {
	mu      sync.Mutex
	dead    bool // set when the empty room was garbage-collected
	members map[*Client]struct{}
}

// NewRegistry creates an empty room registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:   log.With().Str("component", "registry").Logger(),
		rooms: make(map[string]*roomSubscribers),
	}
}

// Subscribe adds handle to room's subscriber set, creating the room entry
// lazily. Subscribing an already-subscribed handle is a no-op.
func (r *Registry) Subscribe(room string, c *Client) {
	for {
		entry := r.entry(room)
		entry.mu.Lock()
		if entry.dead {
			// Lost a race with garbage collection of the empty room.
			entry.mu.Unlock()
			continue
		}
		entry.members[c] = struct{}{}
		entry.mu.Unlock()
		return
	}
}

// Unsubscribe removes handle from room. It is a no-op if the handle is
// not subscribed. A room whose subscriber set becomes empty is dropped;
// room metadata lives in the message store, so nothing is lost.
func (r *Registry) Unsubscribe(room string, c *Client) {
	r.mu.Lock()
	entry, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return
	}
	entry.mu.Lock()
	delete(entry.members, c)
	if len(entry.members) == 0 {
		entry.dead = true
		delete(r.rooms, room)
	}
	entry.mu.Unlock()
	r.mu.Unlock()
}

// Broadcast delivers event to every handle subscribed to room at the
// moment the subscriber set is snapshotted. Delivery is a non-blocking
// enqueue onto each handle's bounded outbound queue; a handle that cannot
// accept the event is treated as implicitly disconnected and removed,
// without aborting delivery to its siblings.
func (r *Registry) Broadcast(room string, event Event) {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	snapshot := make([]*Client, 0, len(entry.members))
	for c := range entry.members {
		snapshot = append(snapshot, c)
	}
	entry.mu.Unlock()

	metrics.BroadcastEvents.WithLabelValues(eventKind(event)).Inc()

	for _, c := range snapshot {
		if c.enqueue(event) {
			continue
		}
		metrics.DeliveryFailures.Inc()
		r.log.Warn().
			Str("room", room).
			Str("user", c.User).
			Stringer("conn_id", c.ID).
			Msg("send queue unavailable, dropping subscriber")
		r.Unsubscribe(room, c)
		c.closeQueue()
	}
}

// Subscribers returns how many handles are currently subscribed to room.
func (r *Registry) Subscribers(room string) int {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.members)
}

// Close drops every room and closes every subscribed handle's queue,
// releasing their write loops. Used during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*roomSubscribers)
	r.mu.Unlock()

	closed := 0
	for _, entry := range rooms {
		entry.mu.Lock()
		entry.dead = true
		for c := range entry.members {
			c.closeQueue()
			closed++
		}
		entry.members = nil
		entry.mu.Unlock()
	}
	r.log.Info().Int("connections", closed).Msg("registry closed")
}

func (r *Registry) entry(room string) *roomSubscribers {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.rooms[room]; ok {
		return entry
	}
	entry = &roomSubscribers{members: make(map[*Client]struct{})}
	r.rooms[room] = entry
	return entry
}

func eventKind(event Event) string {
	switch event.(type) {
	case NewMessage:
		return "message"
	case PresenceUpdate:
		return "presence"
	default:
		return "unknown"
	}
}
