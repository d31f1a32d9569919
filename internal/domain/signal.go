package domain

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// Relay event surface. Payloads travel inside an Envelope and are forwarded
// verbatim between room members; the relay only looks at the room id.
const (
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventReadyForCall     = "ready-for-call"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventCandidate        = "candidate"
	EventSendMessage      = "send-message"
	EventReceiveMessage   = "receive-message"
	EventUserDisconnected = "user-disconnected"
	EventConnected        = "connected"
	EventError            = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// RoomScoped is the minimal shape the relay decodes from a payload to pick
// fan-out targets. Everything else is opaque.
type RoomScoped struct {
	RoomID string `json:"roomId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type ReadyForCallPayload struct {
	OffererID string `json:"offererId"`
}

type OfferPayload struct {
	RoomID string                    `json:"roomId"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

type AnswerPayload struct {
	RoomID string                    `json:"roomId"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

type CandidatePayload struct {
	RoomID    string                  `json:"roomId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type UserDisconnectedPayload struct {
	UserID string `json:"userId"`
}

// ConnectedPayload is sent to a client right after the websocket upgrade so
// it can recognize itself in the ready-for-call offerer designation.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
