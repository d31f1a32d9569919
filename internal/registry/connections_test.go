package registry

import (
	"testing"

	"github.com/avelin/quickmeet/internal/domain"
)

func TestConnections_RegisterLookupUnregister(t *testing.T) {
	r := NewConnections()

	conn := domain.NewConnection()
	id := r.Register(conn)
	if id == "" {
		t.Fatalf("expected a connection id")
	}

	got, ok := r.Lookup(id)
	if !ok || got != conn {
		t.Fatalf("lookup did not return the registered connection")
	}

	removed := r.Unregister(id)
	if removed != conn {
		t.Fatalf("unregister did not return the connection")
	}
	if _, ok := r.Lookup(id); ok {
		t.Fatalf("connection still present after unregister")
	}
}

func TestConnections_UnregisterIsIdempotent(t *testing.T) {
	r := NewConnections()

	conn := domain.NewConnection()
	r.Register(conn)

	if r.Unregister(conn.ID) == nil {
		t.Fatalf("first unregister must return the connection")
	}
	if r.Unregister(conn.ID) != nil {
		t.Fatalf("second unregister must be a no-op")
	}
	if r.Unregister("unknown") != nil {
		t.Fatalf("unknown id must be a no-op")
	}
}

func TestConnections_Count(t *testing.T) {
	r := NewConnections()

	a := domain.NewConnection()
	b := domain.NewConnection()
	r.Register(a)
	r.Register(b)

	if got := r.Count(); got != 2 {
		t.Fatalf("expected 2 live connections, got %d", got)
	}

	r.Unregister(a.ID)
	if got := r.Count(); got != 1 {
		t.Fatalf("expected 1 live connection, got %d", got)
	}
}
