package router

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the router needs. Narrowed to an
// interface so tests can stand in misbehaving transports.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// peer is one registered client connection. The write mutex serializes
// writes from overlapping broadcasts; closeOnce makes transport closure
// idempotent no matter which code path gets there first.
type peer struct {
	id        uuid.UUID
	conn      Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func newPeer(conn Conn) *peer {
	return &peer{
		id:   uuid.New(),
		conn: conn,
	}
}

// close sends a close frame with the given code and closes the transport.
// Safe to call from any number of code paths; only the first takes effect.
func (p *peer) close(code int, reason string, deadline time.Time) {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		msg := websocket.FormatCloseMessage(code, reason)
		// WriteControl is safe concurrently with an in-flight WriteMessage.
		_ = p.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = p.conn.Close()
	})
}
