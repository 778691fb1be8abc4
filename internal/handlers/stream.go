package handlers

import (
	"github.com/gofiber/contrib/websocket"
)

// ConnLike is the slice of *websocket.Conn the streams need; tests substitute
// their own implementation.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// streamClient pushes JSON snapshots to one websocket. Writes go through a
// buffered channel drained by a single pump goroutine, so subscription
// callbacks from any goroutine stay safe. A slow consumer drops snapshots
// rather than blocking the sender; every payload is a full snapshot, so the
// next one makes up for it.
type streamClient struct {
	conn ConnLike
	send chan []byte
}

func newStreamClient(conn ConnLike) *streamClient {
	return &streamClient{conn: conn, send: make(chan []byte, 16)}
}

func (c *streamClient) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *streamClient) push(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// waitClosed blocks until the peer goes away. Incoming frames are discarded;
// the streams are one-way.
func (c *streamClient) waitClosed() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) close() {
	close(c.send)
}
