// Package socket is the WebSocket transport: it upgrades connections, runs one read
// and one write pump per connection and dispatches inbound events.
package socket

import (
	"errors"
	"sync"
	"time"

	"watchparty/backend/internal/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB, drawing strokes can be large
)

var (
	ErrSendBufferFull = errors.New("socket: send buffer full")
	ErrClosed         = errors.New("socket: connection closed")
)

// Client is one WebSocket connection. It satisfies hub.Conn.
type Client struct {
	id   hub.ConnID
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:   hub.ConnID(uuid.NewString()),
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() hub.ConnID { return c.id }

// TrySend queues a frame without blocking.
func (c *Client) TrySend(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the write pump to send a close frame and hang up. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) sendEvent(ev hub.Event) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "socket").Str("conn", string(c.id)).Msg("failed to encode event")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "socket").Str("conn", string(c.id)).Str("type", ev.Type).Msg("dropped frame")
	}
}

// writePump takes frames from c.send and writes them to the socket, pinging periodically.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				_ = w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
