// Package chat implements the room-based broadcast engine: connection
// lifecycle, presence tracking, and fan-out of message and presence
// events to every subscriber of a room.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AdDoha0/realtime-chat/internal/metrics"
	"github.com/AdDoha0/realtime-chat/internal/models"
	"github.com/AdDoha0/realtime-chat/internal/render"
	"github.com/AdDoha0/realtime-chat/internal/store"
)

// Options tunes per-connection behavior.
type Options struct {
	// SendQueueSize bounds each connection's outbound event queue. A
	// connection whose queue overflows is disconnected rather than
	// allowed to stall or skip events.
	SendQueueSize int
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64
	// RateLimitBurst messages per RateLimitInterval are accepted per
	// connection; excess messages are discarded.
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 5
	}
	if o.RateLimitInterval <= 0 {
		o.RateLimitInterval = time.Second
	}
	return o
}

// Service orchestrates connect, receive, broadcast, and disconnect for
// chat connections, wiring the registry, the presence tracker, and the
// message store together.
type Service struct {
	store    store.MessageStore
	cache    *store.RedisStore // optional
	registry *Registry
	presence *Presence
	renderer render.Renderer
	log      zerolog.Logger
	opts     Options
}

// NewService creates the chat service. cache may be nil.
func NewService(st store.MessageStore, cache *store.RedisStore, registry *Registry, presence *Presence, renderer render.Renderer, log zerolog.Logger, opts Options) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		registry: registry,
		presence: presence,
		renderer: renderer,
		log:      log.With().Str("component", "chat").Logger(),
		opts:     opts.withDefaults(),
	}
}

// Registry exposes the room registry, primarily for shutdown wiring.
func (s *Service) Registry() *Registry { return s.registry }

// OnlineCount reports how many users are currently online in a room.
func (s *Service) OnlineCount(room string) int {
	return s.presence.Count(room)
}

// Connect admits a new connection for user into the named room. The room
// must already exist; connecting to an unknown room fails with
// ErrRoomNotFound and leaves no partial state behind. On success the
// handle is subscribed, the user is marked online, and, when presence
// actually changed, the new count is broadcast to the whole room, the
// connecting client included.
func (s *Service) Connect(ctx context.Context, user, roomName string, conn Conn) (*Client, error) {
	room, err := s.store.FindRoom(ctx, roomName)
	if err != nil {
		return nil, fmt.Errorf("resolve room %q: %w", roomName, err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, roomName)
	}

	limiter := newRateLimiter(s.opts.RateLimitBurst, s.opts.RateLimitInterval)
	c := newClient(user, room, conn, s.opts.SendQueueSize, limiter)

	s.registry.Subscribe(room.Name, c)

	if s.presence.MarkOnline(room.Name, user) {
		s.mirrorPresence(ctx, room, user, true)
		count := s.presence.Count(room.Name)
		s.registry.Broadcast(room.Name, PresenceUpdate{Count: count})
	}

	c.setActive()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	s.log.Info().
		Str("user", user).
		Str("room", room.Name).
		Stringer("conn_id", c.ID).
		Msg("client connected")

	return c, nil
}

type inboundMessage struct {
	Body *string `json:"body"`
}

// Receive handles one raw inbound frame from an active connection:
// validate, persist, then broadcast the new message's ID to the room.
// Malformed frames are dropped with ErrMalformedInput and the connection
// stays active; frames on a non-active handle fail with ErrInvalidState.
func (s *Service) Receive(ctx context.Context, c *Client, raw []byte) error {
	if c.State() != StateActive {
		return ErrInvalidState
	}

	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if in.Body == nil {
		metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: missing body field", ErrMalformedInput)
	}
	body := strings.TrimSpace(*in.Body)
	if body == "" {
		metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: empty body", ErrMalformedInput)
	}

	_, err := s.publish(ctx, c.room, c.User, body, "websocket")
	return err
}

// Post persists and broadcasts a message on behalf of the HTTP surface,
// outside any live connection.
func (s *Service) Post(ctx context.Context, roomName, author, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedInput)
	}

	room, err := s.store.FindRoom(ctx, roomName)
	if err != nil {
		return nil, fmt.Errorf("resolve room %q: %w", roomName, err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, roomName)
	}

	return s.publish(ctx, room, author, body, "http")
}

// Disconnect tears a connection down: unsubscribe, mark offline, and
// broadcast the decreased count when presence changed. Calling it again
// on the same handle is a no-op.
func (s *Service) Disconnect(ctx context.Context, c *Client, reason string) {
	if !c.beginDisconnect() {
		return
	}

	room := c.room
	s.registry.Unsubscribe(room.Name, c)
	c.closeQueue()

	if s.presence.MarkOffline(room.Name, c.User) {
		s.mirrorPresence(ctx, room, c.User, false)
		count := s.presence.Count(room.Name)
		s.registry.Broadcast(room.Name, PresenceUpdate{Count: count})
	}

	metrics.ConnectionsActive.Dec()
	s.log.Info().
		Str("user", c.User).
		Str("room", room.Name).
		Stringer("conn_id", c.ID).
		Str("reason", reason).
		Msg("client disconnected")
}

// publish persists a message and fans its ID out to the room. Persistence
// failures abort the broadcast; cache failures do not.
func (s *Service) publish(ctx context.Context, room *models.Room, author, body, source string) (*models.Message, error) {
	msg, err := s.store.CreateMessage(ctx, room, author, body)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheMessage(ctx, msg); err != nil {
			s.log.Debug().Err(err).Str("message_id", msg.ID).Msg("message cache write failed")
		}
	}

	metrics.MessagesPosted.WithLabelValues(source).Inc()
	s.registry.Broadcast(room.Name, NewMessage{MessageID: msg.ID})
	return msg, nil
}

// mirrorPresence keeps the durable presence copy in the store (and the
// redis set when configured) in sync with the in-memory tracker. All
// writes are best-effort.
func (s *Service) mirrorPresence(ctx context.Context, room *models.Room, user string, online bool) {
	roomID := room.ID.String()

	var err error
	if online {
		err = s.store.AddOnlineUser(ctx, roomID, user)
	} else {
		err = s.store.RemoveOnlineUser(ctx, roomID, user)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("room", room.Name).Str("user", user).Msg("presence mirror write failed")
	}

	if s.cache == nil {
		return
	}
	if online {
		err = s.cache.AddOnlineUser(ctx, roomID, user)
	} else {
		err = s.cache.RemoveOnlineUser(ctx, roomID, user)
	}
	if err != nil {
		s.log.Debug().Err(err).Str("room", room.Name).Str("user", user).Msg("presence cache write failed")
	}
}
