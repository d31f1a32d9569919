package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/registry"
	"github.com/avelin/quickmeet/lib/logger/sl"
)

// Recorder receives call lifecycle notifications for durable bookkeeping.
// It is never consulted for call correctness and may be nil.
type Recorder interface {
	CallStarted(ctx context.Context, roomCode string, participants []string)
	CallEnded(ctx context.Context, roomCode string)
}

// Relay routes signaling events between the members of a room. It reads
// membership from the registries and forwards payloads verbatim; it never
// inspects an offer, answer or candidate beyond its room id.
//
// Every handler runs on the sending connection's reader goroutine, and all
// deliveries to a recipient go through that recipient's ordered event queue.
// That preserves one sender's emission order at each receiver without
// imposing any order across senders.
type Relay struct {
	conns   *registry.Connections
	rooms   *registry.Rooms
	limiter *ChatLimiter
	records Recorder
	log     *slog.Logger
}

func New(conns *registry.Connections, rooms *registry.Rooms, limiter *ChatLimiter, records Recorder, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		conns:   conns,
		rooms:   rooms,
		limiter: limiter,
		records: records,
		log:     log,
	}
}

func (r *Relay) Register(conn *domain.Connection) string {
	return r.conns.Register(conn)
}

// OnJoin announces room membership. When the join fills the room, every
// member is told who the designated offerer is: always the first-joined
// connection, a deterministic tie-break rather than a negotiation.
func (r *Relay) OnJoin(conn *domain.Connection, roomID, userID string) {
	const op = "relay.join"
	log := r.log.With("op", op, "conn_id", conn.ID, "room_id", roomID)

	if roomID == "" {
		r.sendError(conn, "roomId is required")
		return
	}
	if conn.Closed() {
		return
	}

	// A connection lives in at most one room.
	if prevRoom, prevUser := conn.Membership(); prevRoom != "" && prevRoom != roomID {
		r.leave(conn, prevRoom, prevUser)
	}

	conn.SetMembership(roomID, userID)

	res := r.rooms.Join(roomID, conn.ID)

	// Teardown may have finished between the closed check and the registry
	// join; a closed connection must never stay behind as a room member.
	if conn.Closed() {
		r.leave(conn, roomID, userID)
		return
	}

	log.Info("joined room", "user_id", userID, "members", len(res.Members))

	if !res.BecameReady {
		return
	}

	ev, err := domain.NewEnvelope(domain.EventReadyForCall, domain.ReadyForCallPayload{
		OffererID: res.OffererID,
	})
	if err != nil {
		log.Error("marshal ready-for-call", sl.Err(err))
		return
	}
	for _, id := range res.Members {
		r.deliver(id, ev)
	}
	log.Info("room ready for call", "offerer_id", res.OffererID)

	if r.records != nil {
		participants := make([]string, 0, len(res.Members))
		for _, id := range res.Members {
			if member, ok := r.conns.Lookup(id); ok {
				if _, memberUser := member.Membership(); memberUser != "" {
					participants = append(participants, memberUser)
				}
			}
		}
		go r.records.CallStarted(context.Background(), roomID, participants)
	}
}

func (r *Relay) OnLeave(conn *domain.Connection, roomID, userID string) {
	curRoom, curUser := conn.Membership()
	if roomID == "" {
		roomID = curRoom
	}
	if userID == "" {
		userID = curUser
	}
	r.leave(conn, roomID, userID)
}

// OnForward relays an offer, answer or candidate payload unchanged to every
// other member of its room. Malformed session descriptions are the receiving
// orchestrator's problem, not the relay's.
func (r *Relay) OnForward(conn *domain.Connection, event string, data json.RawMessage) {
	const op = "relay.forward"

	var scope domain.RoomScoped
	if err := json.Unmarshal(data, &scope); err != nil || scope.RoomID == "" {
		r.log.Warn("unroutable signal dropped", "op", op, "conn_id", conn.ID, "event", event)
		r.sendError(conn, "roomId is required")
		return
	}

	r.fanOut(scope.RoomID, conn.ID, domain.Envelope{Event: event, Data: data})
}

// OnChat relays a chat message to the other members, stamped by the sender.
// The sender does not get its own message echoed back.
func (r *Relay) OnChat(conn *domain.Connection, data json.RawMessage) {
	const op = "relay.chat"

	var scope domain.RoomScoped
	if err := json.Unmarshal(data, &scope); err != nil || scope.RoomID == "" {
		r.log.Warn("unroutable chat dropped", "op", op, "conn_id", conn.ID)
		r.sendError(conn, "roomId is required")
		return
	}

	if r.limiter != nil && !r.limiter.Allow(conn.ID) {
		r.log.Warn("chat rate limit exceeded", "op", op, "conn_id", conn.ID, "room_id", scope.RoomID)
		r.sendError(conn, "too many messages")
		return
	}

	r.fanOut(scope.RoomID, conn.ID, domain.Envelope{Event: domain.EventReceiveMessage, Data: data})
}

// OnTransportClose settles a connection that dropped without an explicit
// leave-room. Safe to call more than once for the same id.
func (r *Relay) OnTransportClose(connID string) {
	conn := r.conns.Unregister(connID)
	if conn == nil {
		return
	}
	conn.Close()
	if r.limiter != nil {
		r.limiter.Forget(connID)
	}

	if roomID, userID := conn.Membership(); roomID != "" {
		r.leave(conn, roomID, userID)
	}
	r.log.Info("connection closed", "conn_id", connID)
}

func (r *Relay) leave(conn *domain.Connection, roomID, userID string) {
	const op = "relay.leave"

	res := r.rooms.Leave(roomID, conn.ID)
	conn.ClearRoom()
	if !res.Removed {
		return
	}

	r.log.Info("left room", "op", op, "conn_id", conn.ID, "room_id", roomID, "user_id", userID)

	if len(res.Remaining) > 0 {
		ev, err := domain.NewEnvelope(domain.EventUserDisconnected, domain.UserDisconnectedPayload{
			UserID: userID,
		})
		if err != nil {
			r.log.Error("marshal user-disconnected", sl.Err(err))
			return
		}
		for _, id := range res.Remaining {
			r.deliver(id, ev)
		}
	}

	if res.RoomEmpty && r.records != nil {
		go r.records.CallEnded(context.Background(), roomID)
	}
}

func (r *Relay) fanOut(roomID, senderID string, ev domain.Envelope) {
	for _, id := range r.rooms.Members(roomID) {
		if id == senderID {
			continue
		}
		r.deliver(id, ev)
	}
}

func (r *Relay) deliver(connID string, ev domain.Envelope) {
	conn, ok := r.conns.Lookup(connID)
	if !ok {
		return
	}
	if err := conn.Enqueue(ev); err != nil {
		// The client stopped draining; dropping the connection keeps the
		// per-recipient ordering guarantee intact.
		r.log.Warn("dropping slow connection", "conn_id", connID, sl.Err(err))
		r.OnTransportClose(connID)
	}
}

func (r *Relay) sendError(conn *domain.Connection, msg string) {
	ev, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{Error: msg})
	if err != nil {
		return
	}
	_ = conn.Enqueue(ev)
}
