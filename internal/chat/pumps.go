package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AdDoha0/realtime-chat/internal/metrics"
)

const (
	// pongWait is how long a connection may stay silent before the read
	// side gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// writeWait bounds every write to the transport.
	writeWait = 10 * time.Second
	// fetchTimeout bounds the store lookup performed per delivery.
	fetchTimeout = 2 * time.Second
)

// ReadLoop consumes inbound frames from the connection until the
// transport fails or is closed, feeding each frame through Receive.
// It runs in its own goroutine, one per connection, and guarantees the
// handle is disconnected before returning.
func (s *Service) ReadLoop(c *Client) {
	defer func() {
		s.Disconnect(context.Background(), c, "read loop closed")
		c.conn.Close()
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			s.logReadError(c, err)
			return
		}

		if !c.limiter.allow() {
			metrics.MessagesDropped.WithLabelValues("rate_limited").Inc()
			s.log.Warn().
				Str("user", c.User).
				Stringer("conn_id", c.ID).
				Msg("rate limit exceeded, discarding message")
			continue
		}

		if err := s.Receive(context.Background(), c, raw); err != nil {
			switch {
			case errors.Is(err, ErrMalformedInput):
				s.log.Warn().Err(err).
					Str("user", c.User).
					Stringer("conn_id", c.ID).
					Msg("dropping malformed message")
			case errors.Is(err, ErrInvalidState):
				return
			default:
				s.log.Error().Err(err).
					Str("user", c.User).
					Stringer("conn_id", c.ID).
					Msg("message handling failed")
			}
		}
	}
}

// WriteLoop drains the handle's event queue to the transport, resolving
// and rendering each event per subscriber, and keeps the connection alive
// with pings. It exits when the queue is closed or a write fails.
func (s *Service) WriteLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Disconnect(context.Background(), c, "write loop closed")
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.events:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, ok := s.renderEvent(c, event)
			if !ok {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Warn().Err(err).
						Str("user", c.User).
						Stringer("conn_id", c.ID).
						Msg("write failed")
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// renderEvent turns a broadcast event into a wire payload for this
// subscriber. A NewMessage whose ID no longer resolves is skipped, never
// fatal.
func (s *Service) renderEvent(c *Client, event Event) ([]byte, bool) {
	switch e := event.(type) {
	case NewMessage:
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg, err := s.store.GetMessage(ctx, e.MessageID)
		if err != nil {
			s.log.Error().Err(err).Str("message_id", e.MessageID).Msg("message fetch failed")
			return nil, false
		}
		if msg == nil {
			s.log.Warn().Str("message_id", e.MessageID).Msg("broadcast message no longer resolves")
			return nil, false
		}
		payload, err := s.renderer.RenderMessage(msg)
		if err != nil {
			s.log.Error().Err(err).Str("message_id", e.MessageID).Msg("message render failed")
			return nil, false
		}
		return payload, true

	case PresenceUpdate:
		payload, err := s.renderer.RenderPresence(e.Count)
		if err != nil {
			s.log.Error().Err(err).Msg("presence render failed")
			return nil, false
		}
		return payload, true

	default:
		s.log.Error().Msgf("unknown event type %T", event)
		return nil, false
	}
}

func (s *Service) logReadError(c *Client, err error) {
	evt := s.log.Debug()
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		evt = s.log.Warn()
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		if !errors.Is(err, io.EOF) && !isExpectedCloseError(err) {
			evt = s.log.Warn()
		}
	}
	evt.Err(err).
		Str("user", c.User).
		Stringer("conn_id", c.ID).
		Msg("read loop ended")
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
