package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn for pump tests. Inbound frames are fed
// through a channel; outbound writes are recorded per message type.
type fakeConn struct {
	frames chan []byte

	mu          sync.Mutex
	writes      [][]byte
	closeFrames int
	pings       int
	closed      bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.frames
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed network connection")
	}
	switch messageType {
	case websocket.TextMessage:
		payload := make([]byte, len(data))
		copy(payload, data)
		f.writes = append(f.writes, payload)
	case websocket.CloseMessage:
		f.closeFrames++
	case websocket.PingMessage:
		f.pings++
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) textWrites() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	writes := make([][]byte, len(f.writes))
	copy(writes, f.writes)
	return writes
}

func TestWriteLoop_RendersQueuedEvents(t *testing.T) {
	req := require.New(t)
	st := newMemStore("public-chat")
	svc := newTestService(st, Options{})
	ctx := context.Background()

	conn := newFakeConn()
	alice, err := svc.Connect(ctx, "alice", "public-chat", conn)
	req.NoError(err)

	msg, err := svc.Post(ctx, "public-chat", "bob", "hello alice")
	req.NoError(err)

	// Closing the queue lets the loop drain and exit synchronously
	alice.closeQueue()
	svc.WriteLoop(alice)

	writes := conn.textWrites()
	req.Len(writes, 2)

	var presence struct {
		Type  string `json:"type"`
		Count int    `json:"online_count"`
	}
	req.NoError(json.Unmarshal(writes[0], &presence))
	req.Equal("presence", presence.Type)
	req.Equal(1, presence.Count)

	var rendered struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	req.NoError(json.Unmarshal(writes[1], &rendered))
	req.Equal("message", rendered.Type)
	req.Equal(msg.ID, rendered.ID)
	req.Equal("bob", rendered.Author)
	req.Equal("hello alice", rendered.Body)

	conn.mu.Lock()
	req.Equal(1, conn.closeFrames)
	conn.mu.Unlock()
	req.Equal(StateDisconnected, alice.State())
}

func TestWriteLoop_SkipsUnresolvableMessage(t *testing.T) {
	req := require.New(t)
	st := newMemStore("public-chat")
	svc := newTestService(st, Options{})

	conn := newFakeConn()
	alice, err := svc.Connect(context.Background(), "alice", "public-chat", conn)
	req.NoError(err)
	drainEvents(alice)

	// An event whose message was deleted underneath must be skipped
	req.True(alice.enqueue(NewMessage{MessageID: "gone"}))
	alice.closeQueue()
	svc.WriteLoop(alice)

	req.Empty(conn.textWrites())
}

func TestReadLoop_FeedsReceiveAndDisconnects(t *testing.T) {
	req := require.New(t)
	st := newMemStore("public-chat")
	svc := newTestService(st, Options{})
	ctx := context.Background()

	conn := newFakeConn()
	alice, err := svc.Connect(ctx, "alice", "public-chat", conn)
	req.NoError(err)
	bob, err := svc.Connect(ctx, "bob", "public-chat", nil)
	req.NoError(err)
	drainEvents(bob)

	conn.frames <- []byte(`{"body":"hi"}`)
	conn.frames <- []byte(`{"text":"dropped"}`)
	close(conn.frames)

	svc.ReadLoop(alice)

	// One valid message made it through; the malformed one was dropped.
	// The transport EOF then disconnected the handle.
	req.Equal(1, st.messageCount())
	req.Equal(StateDisconnected, alice.State())

	events := drainEvents(bob)
	req.Len(events, 2)
	_, ok := events[0].(NewMessage)
	req.True(ok)
	req.Equal(PresenceUpdate{Count: 1}, events[1])
}

func TestReadLoop_RateLimitDiscards(t *testing.T) {
	req := require.New(t)
	st := newMemStore("public-chat")
	svc := newTestService(st, Options{RateLimitBurst: 1, RateLimitInterval: time.Hour})

	conn := newFakeConn()
	alice, err := svc.Connect(context.Background(), "alice", "public-chat", conn)
	req.NoError(err)

	conn.frames <- []byte(`{"body":"first"}`)
	conn.frames <- []byte(`{"body":"second"}`)
	conn.frames <- []byte(`{"body":"third"}`)
	close(conn.frames)

	svc.ReadLoop(alice)

	// Only the first message fit in the bucket
	req.Equal(1, st.messageCount())
}
