package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/registry"
)

func newTestRelay(t *testing.T, records Recorder) (*Relay, func() *domain.Connection) {
	t.Helper()

	conns := registry.NewConnections()
	rooms := registry.NewRooms()
	r := New(conns, rooms, nil, records, nil)

	return r, func() *domain.Connection {
		conn := domain.NewConnection()
		r.Register(conn)
		return conn
	}
}

func drain(conn *domain.Connection) []domain.Envelope {
	var out []domain.Envelope
	for {
		select {
		case ev, ok := <-conn.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestRelay_SecondJoinEmitsReadyForCallToBoth(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()

	r.OnJoin(a, "r1", "alice")
	if evs := drain(a); len(evs) != 0 {
		t.Fatalf("first join must not produce events, got %v", evs)
	}

	r.OnJoin(b, "r1", "bob")

	for _, conn := range []*domain.Connection{a, b} {
		evs := drain(conn)
		if len(evs) != 1 || evs[0].Event != domain.EventReadyForCall {
			t.Fatalf("expected one ready-for-call for %s, got %v", conn.ID, evs)
		}
		var p domain.ReadyForCallPayload
		if err := json.Unmarshal(evs[0].Data, &p); err != nil {
			t.Fatalf("unmarshal ready-for-call: %v", err)
		}
		if p.OffererID != a.ID {
			t.Fatalf("offerer must be the first joiner %s, got %s", a.ID, p.OffererID)
		}
	}
}

func TestRelay_OfferForwardedVerbatimWithoutEcho(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	payload := mustMarshal(t, map[string]any{"roomId": "r1", "sdp": map[string]any{"type": "offer", "sdp": "X"}})
	r.OnForward(a, domain.EventOffer, payload)

	if evs := drain(a); len(evs) != 0 {
		t.Fatalf("sender must not receive its own offer, got %v", evs)
	}

	evs := drain(b)
	if len(evs) != 1 || evs[0].Event != domain.EventOffer {
		t.Fatalf("expected exactly one offer at the peer, got %v", evs)
	}
	if string(evs[0].Data) != string(payload) {
		t.Fatalf("payload was not forwarded verbatim: %s", evs[0].Data)
	}
}

func TestRelay_AbruptDisconnectNotifiesRemainingOnce(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	// B drops without sending leave-room.
	r.OnTransportClose(b.ID)
	r.OnTransportClose(b.ID)

	evs := drain(a)
	if len(evs) != 1 || evs[0].Event != domain.EventUserDisconnected {
		t.Fatalf("expected exactly one user-disconnected, got %v", evs)
	}
	var p domain.UserDisconnectedPayload
	if err := json.Unmarshal(evs[0].Data, &p); err != nil {
		t.Fatalf("unmarshal user-disconnected: %v", err)
	}
	if p.UserID != "bob" {
		t.Fatalf("expected the leaver's user id, got %q", p.UserID)
	}
}

func TestRelay_ExplicitLeaveNotifiesRemaining(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	r.OnLeave(a, "r1", "alice")

	evs := drain(b)
	if len(evs) != 1 || evs[0].Event != domain.EventUserDisconnected {
		t.Fatalf("expected one user-disconnected at the remaining member, got %v", evs)
	}
}

func TestRelay_ChatIsFIFOAndNotEchoed(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	texts := []string{"hi", "how are you", "bye"}
	for _, text := range texts {
		r.OnChat(a, mustMarshal(t, domain.ChatMessage{RoomID: "r1", From: "alice", Text: text, Time: 1}))
	}

	if evs := drain(a); len(evs) != 0 {
		t.Fatalf("sender must not receive its own chat back, got %v", evs)
	}

	evs := drain(b)
	if len(evs) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(evs))
	}
	for i, ev := range evs {
		if ev.Event != domain.EventReceiveMessage {
			t.Fatalf("expected receive-message, got %q", ev.Event)
		}
		var msg domain.ChatMessage
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			t.Fatalf("unmarshal chat: %v", err)
		}
		if msg.Text != texts[i] {
			t.Fatalf("messages out of order: got %q at %d, want %q", msg.Text, i, texts[i])
		}
	}
}

func TestRelay_UnroutablePayloadIsDropped(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	r.OnForward(a, domain.EventOffer, mustMarshal(t, map[string]any{"sdp": "X"}))

	if evs := drain(b); len(evs) != 0 {
		t.Fatalf("payload without a room id must not be forwarded, got %v", evs)
	}
	evs := drain(a)
	if len(evs) != 1 || evs[0].Event != domain.EventError {
		t.Fatalf("sender should be told the payload was unroutable, got %v", evs)
	}
}

func TestRelay_ChatRateLimit(t *testing.T) {
	conns := registry.NewConnections()
	rooms := registry.NewRooms()
	r := New(conns, rooms, NewChatLimiter(1, time.Minute), nil, nil)

	a := domain.NewConnection()
	b := domain.NewConnection()
	r.Register(a)
	r.Register(b)
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	msg := mustMarshal(t, domain.ChatMessage{RoomID: "r1", From: "alice", Text: "spam", Time: 1})
	r.OnChat(a, msg)
	r.OnChat(a, msg)

	if evs := drain(b); len(evs) != 1 {
		t.Fatalf("expected the limiter to let exactly one message through, got %d", len(evs))
	}
	evs := drain(a)
	if len(evs) != 1 || evs[0].Event != domain.EventError {
		t.Fatalf("expected a rate limit error at the sender, got %v", evs)
	}
}

func TestRelay_JoiningSecondRoomLeavesFirst(t *testing.T) {
	r, connect := newTestRelay(t, nil)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")
	drain(a)
	drain(b)

	r.OnJoin(b, "r2", "bob")

	evs := drain(a)
	if len(evs) != 1 || evs[0].Event != domain.EventUserDisconnected {
		t.Fatalf("moving rooms must notify the abandoned peer, got %v", evs)
	}
	aRoom, _ := a.Membership()
	bRoom, _ := b.Membership()
	if aRoom != "r1" || bRoom != "r2" {
		t.Fatalf("unexpected room assignment: a=%q b=%q", aRoom, bRoom)
	}
}

type fakeRecorder struct {
	started chan []string
	ended   chan string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		started: make(chan []string, 4),
		ended:   make(chan string, 4),
	}
}

func (f *fakeRecorder) CallStarted(_ context.Context, _ string, participants []string) {
	f.started <- participants
}

func (f *fakeRecorder) CallEnded(_ context.Context, roomCode string) {
	f.ended <- roomCode
}

func TestRelay_RecorderObservesCallLifecycle(t *testing.T) {
	records := newFakeRecorder()
	r, connect := newTestRelay(t, records)

	a := connect()
	b := connect()
	r.OnJoin(a, "r1", "alice")
	r.OnJoin(b, "r1", "bob")

	select {
	case participants := <-records.started:
		if len(participants) != 2 {
			t.Fatalf("expected both participants recorded, got %v", participants)
		}
	case <-time.After(time.Second):
		t.Fatalf("call start was never recorded")
	}

	r.OnTransportClose(a.ID)
	r.OnTransportClose(b.ID)

	select {
	case room := <-records.ended:
		if room != "r1" {
			t.Fatalf("unexpected room in call end record: %q", room)
		}
	case <-time.After(time.Second):
		t.Fatalf("call end was never recorded")
	}
}

// A join racing transport teardown must never leave the closed connection
// behind as a room member, however the two interleave.
func TestRelay_ConcurrentJoinAndTeardownLeavesNoGhost(t *testing.T) {
	for i := 0; i < 200; i++ {
		r, connect := newTestRelay(t, nil)
		conn := connect()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.OnJoin(conn, "r1", "alice")
		}()
		go func() {
			defer wg.Done()
			r.OnTransportClose(conn.ID)
		}()
		wg.Wait()

		if members := r.rooms.Members("r1"); len(members) != 0 {
			t.Fatalf("iteration %d: closed connection lingers as room member: %v", i, members)
		}
		if _, ok := r.conns.Lookup(conn.ID); ok {
			t.Fatalf("iteration %d: closed connection still registered", i)
		}
	}
}

func TestRelay_JoinAfterTeardownIsRejected(t *testing.T) {
	r, connect := newTestRelay(t, nil)
	conn := connect()

	r.OnTransportClose(conn.ID)
	r.OnJoin(conn, "r1", "alice")

	if members := r.rooms.Members("r1"); len(members) != 0 {
		t.Fatalf("join on a closed connection must be refused, got members %v", members)
	}
}
