package registry

import (
	"sync"
	"time"

	"github.com/avelin/quickmeet/internal/domain"
)

// Connections tracks live relay connections for the lifetime of the process.
// A restart drops everything; clients are expected to re-join.
type Connections struct {
	mu    sync.RWMutex
	conns map[string]*domain.Connection
}

func NewConnections() *Connections {
	return &Connections{conns: make(map[string]*domain.Connection)}
}

func (r *Connections) Register(conn *domain.Connection) string {
	conn.JoinedAt = time.Now().UTC()

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()

	return conn.ID
}

// Unregister removes the connection and returns it so the caller can settle
// room membership. Returns nil when the id is unknown or already removed,
// which makes teardown idempotent.
func (r *Connections) Unregister(id string) *domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	return conn
}

func (r *Connections) Lookup(id string) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return conn, ok
}

func (r *Connections) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
