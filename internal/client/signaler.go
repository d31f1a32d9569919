package client

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/avelin/quickmeet/internal/domain"
)

// Signaler is the relay-facing side of a call session. Implementations must
// preserve the order of sent events; received envelopes arrive on Events,
// which closes when the transport does.
type Signaler interface {
	JoinRoom(p domain.JoinRoomPayload) error
	LeaveRoom(p domain.LeaveRoomPayload) error
	SendOffer(p domain.OfferPayload) error
	SendAnswer(p domain.AnswerPayload) error
	SendCandidate(p domain.CandidatePayload) error
	SendChat(msg domain.ChatMessage) error
	Events() <-chan domain.Envelope
	Close() error
}

// WSSignaler speaks the relay's websocket protocol. One mutex serializes
// writes, which is what gives the relay its per-sender FIFO guarantee.
type WSSignaler struct {
	conn   *websocket.Conn
	events chan domain.Envelope

	mu        sync.Mutex
	closeOnce sync.Once
}

func DialSignaler(ctx context.Context, url string) (*WSSignaler, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s := &WSSignaler{
		conn:   conn,
		events: make(chan domain.Envelope, 32),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSSignaler) readLoop() {
	defer func() {
		s.conn.Close()
		close(s.events)
	}()

	for {
		var env domain.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return
		}
		s.events <- env
	}
}

func (s *WSSignaler) send(event string, v any) error {
	env, err := domain.NewEnvelope(event, v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *WSSignaler) JoinRoom(p domain.JoinRoomPayload) error {
	return s.send(domain.EventJoinRoom, p)
}

func (s *WSSignaler) LeaveRoom(p domain.LeaveRoomPayload) error {
	return s.send(domain.EventLeaveRoom, p)
}

func (s *WSSignaler) SendOffer(p domain.OfferPayload) error {
	return s.send(domain.EventOffer, p)
}

func (s *WSSignaler) SendAnswer(p domain.AnswerPayload) error {
	return s.send(domain.EventAnswer, p)
}

func (s *WSSignaler) SendCandidate(p domain.CandidatePayload) error {
	return s.send(domain.EventCandidate, p)
}

func (s *WSSignaler) SendChat(msg domain.ChatMessage) error {
	return s.send(domain.EventSendMessage, msg)
}

func (s *WSSignaler) Events() <-chan domain.Envelope {
	return s.events
}

func (s *WSSignaler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
