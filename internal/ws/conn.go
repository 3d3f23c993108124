// Package ws is the websocket transport: connection wrapper plus the
// gin handshake handlers for every realtime surface.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrConnClosed = errors.New("ws: connection closed")

// Conn wraps a gorilla connection with a write lock so the session
// manager and the hub fan-out can both send on it. It satisfies both
// the conversation sender and the hub subscriber contracts.
type Conn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteJSON(v)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// ReadMessage blocks on the next inbound frame. Reads are not locked;
// the per-connection read loop is the single reader.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}
