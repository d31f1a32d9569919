package client

// Phase is the handshake state of one call session. All transitions happen
// on the orchestrator's run loop.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingPeer
	PhaseAwaitingOffer
	PhaseOffering
	PhaseAwaitingAnswer
	PhaseAwaitingConnection
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingPeer:
		return "awaiting-peer"
	case PhaseAwaitingOffer:
		return "awaiting-offer"
	case PhaseOffering:
		return "offering"
	case PhaseAwaitingAnswer:
		return "awaiting-answer"
	case PhaseAwaitingConnection:
		return "awaiting-connection"
	case PhaseConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type Role int

const (
	RoleUndetermined Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "undetermined"
	}
}
