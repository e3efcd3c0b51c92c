package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

// Conn is the subset of *websocket.Conn the chat core depends on.
// Tests substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Connection lifecycle states. Transitions are one-way:
// Connecting -> Active -> Disconnected. A reconnect creates a new handle.
const (
	StateConnecting int32 = iota
	StateActive
	StateDisconnected
)

// Client is the live server-side representation of one connection:
// identity, transport, and a bounded outbound event queue. It is created
// by Service.Connect and owned by the Registry until disconnect.
type Client struct {
	ID   uuid.UUID
	User string

	room  *models.Room
	conn  Conn
	state atomic.Int32

	limiter *rateLimiter

	queueMu     sync.Mutex
	queueClosed bool
	events      chan Event
}

func newClient(user string, room *models.Room, conn Conn, queueSize int, limiter *rateLimiter) *Client {
	return &Client{
		ID:      uuid.New(),
		User:    user,
		room:    room,
		conn:    conn,
		limiter: limiter,
		events:  make(chan Event, queueSize),
	}
}

// Room returns the room this handle is subscribed to.
func (c *Client) Room() *models.Room { return c.room }

// State reports the current lifecycle state.
func (c *Client) State() int32 { return c.state.Load() }

func (c *Client) setActive() {
	c.state.CompareAndSwap(StateConnecting, StateActive)
}

// beginDisconnect moves the handle to Disconnected and reports whether
// this call performed the transition. Only the first caller wins, which
// makes Disconnect idempotent.
func (c *Client) beginDisconnect() bool {
	prev := c.state.Swap(StateDisconnected)
	return prev != StateDisconnected
}

// enqueue places an event on the outbound queue without blocking. It
// returns false when the queue is closed or full; the caller treats
// either as a failed delivery.
func (c *Client) enqueue(event Event) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.queueClosed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// closeQueue closes the outbound queue, waking the write loop so it can
// send a close frame and exit. Safe to call more than once.
func (c *Client) closeQueue() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.queueClosed {
		return
	}
	c.queueClosed = true
	close(c.events)
}
