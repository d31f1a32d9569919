package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConnClosed  = errors.New("connection closed")
	ErrConnBacklog = errors.New("connection event backlog full")
)

// Connection is one live relay channel to a participant. Room membership is
// written on the reader goroutine and read during teardown from whichever
// goroutine noticed the failure first, so the mutex guards it together with
// the closed flag. The transport layer drains Events into the websocket, so
// everything queued here reaches the client in order.
type Connection struct {
	ID       string
	JoinedAt time.Time

	mu     sync.RWMutex
	userID string
	roomID string
	closed bool
	Events chan Envelope
}

func NewConnection() *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		Events: make(chan Envelope, 64),
	}
}

// Membership returns the room this connection is joined to and the user id
// it joined as. Both are empty before the first join.
func (c *Connection) Membership() (roomID, userID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.userID
}

func (c *Connection) SetMembership(roomID, userID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.userID = userID
	c.mu.Unlock()
}

// ClearRoom drops the room assignment but keeps the user identity.
func (c *Connection) ClearRoom() {
	c.mu.Lock()
	c.roomID = ""
	c.mu.Unlock()
}

func (c *Connection) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Enqueue queues an event for delivery. A full backlog means the client
// stopped reading; the caller is expected to drop the connection rather
// than the event stream's ordering.
func (c *Connection) Enqueue(ev Envelope) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.Events <- ev:
		return nil
	default:
		return ErrConnBacklog
	}
}

func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Events)
}
