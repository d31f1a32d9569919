package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/lib/logger/sl"
)

const defaultMediaWait = 5 * time.Second

type eventKind int

const (
	evConnected eventKind = iota
	evMediaSettled
	evReadyForCall
	evOffer
	evAnswer
	evCandidate
	evLocalCandidate
	evOfferReady
	evAnswerReady
	evRemoteApplied
	evConnState
	evChat
	evPeerLeft
	evTransportClosed
	evEndCall
)

// event is one item on the run loop's queue. Async task completions carry
// the generation they were started under; results from before a Reset are
// stale and get discarded.
type event struct {
	kind       eventKind
	gen        uint64
	id         string
	sdp        webrtc.SessionDescription
	cand       webrtc.ICECandidateInit
	state      webrtc.PeerConnectionState
	chat       domain.ChatMessage
	needAnswer bool
	err        error
}

type Options struct {
	RoomID      string
	UserID      string
	DisplayName string

	Signaler    Signaler
	NewPeerConn PeerConnFactory
	Media       MediaSource

	// MediaWait bounds how long the session waits for local media before
	// joining the room or offering without it.
	MediaWait time.Duration

	Logger *slog.Logger

	OnPhaseChange func(Phase)
	OnChat        func(domain.ChatMessage)
	OnRemoteTrack func(*webrtc.TrackRemote)
	OnError       func(error)
}

// Orchestrator runs the call-establishment handshake for one participant in
// one room. It reconciles two independently paced processes, local media
// acquisition and relay message arrival, into exactly one handshake.
//
// All session state lives on a single run loop; media acquisition,
// offer/answer creation and remote description application run as tasks
// whose completions feed back into the loop as events.
type Orchestrator struct {
	opts      Options
	mediaWait time.Duration
	log       *slog.Logger

	events chan event
	done   chan struct{}

	phaseValue atomic.Int32
	endOnce    sync.Once

	// Run-loop-owned state.
	phase          Phase
	role           Role
	gen            uint64
	connID         string
	mediaSettled   bool
	pendingOfferer string
	pc             PeerConn
	attached       map[webrtc.TrackLocal]*webrtc.RTPSender
	pending        []webrtc.ICECandidateInit
	remoteSet      bool
	joined         bool
	left           bool
	recovering     bool
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.RoomID == "" {
		return nil, errors.New("room id is required")
	}
	if opts.Signaler == nil {
		return nil, errors.New("signaler is required")
	}
	if opts.NewPeerConn == nil {
		return nil, errors.New("peer connection factory is required")
	}
	if opts.Media == nil {
		return nil, errors.New("media source is required")
	}

	mediaWait := opts.MediaWait
	if mediaWait <= 0 {
		mediaWait = defaultMediaWait
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("room_id", opts.RoomID)

	return &Orchestrator{
		opts:      opts,
		mediaWait: mediaWait,
		log:       log,
		events:    make(chan event, 32),
		done:      make(chan struct{}),
		attached:  make(map[webrtc.TrackLocal]*webrtc.RTPSender),
	}, nil
}

// Run drives the session until it ends: peer left, call ended, transport
// closed, or ctx canceled. It always leaves the session fully reset.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	go o.watchMedia()
	go o.pumpSignals()

	for {
		select {
		case <-ctx.Done():
			o.reset()
			return ctx.Err()
		case ev := <-o.events:
			if o.handle(ev) {
				o.reset()
				return nil
			}
		}
	}
}

// Phase reports the current handshake phase. Safe from any goroutine.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phaseValue.Load())
}

// EndCall tears the session down. Safe to call more than once.
func (o *Orchestrator) EndCall() {
	o.endOnce.Do(func() {
		o.post(event{kind: evEndCall})
	})
}

// SendChat relays a text message to the other room member, stamped with this
// sender's identity and time. Chat never touches handshake state.
func (o *Orchestrator) SendChat(text string) error {
	return o.opts.Signaler.SendChat(domain.ChatMessage{
		RoomID: o.opts.RoomID,
		From:   o.opts.DisplayName,
		Text:   text,
		Time:   time.Now().UnixMilli(),
	})
}

// SetAudioEnabled toggles the microphone track in place; no renegotiation.
func (o *Orchestrator) SetAudioEnabled(enabled bool) {
	o.opts.Media.SetAudioEnabled(enabled)
}

// SetVideoEnabled toggles the camera track in place; no renegotiation.
func (o *Orchestrator) SetVideoEnabled(enabled bool) {
	o.opts.Media.SetVideoEnabled(enabled)
}

// watchMedia waits for local media with a bound: past the timeout the
// session proceeds without media rather than stalling the room forever.
func (o *Orchestrator) watchMedia() {
	timer := time.NewTimer(o.mediaWait)
	defer timer.Stop()

	select {
	case <-o.opts.Media.Ready():
		if err := o.opts.Media.Err(); err != nil {
			o.surface(err)
		}
	case <-timer.C:
		o.log.Warn("local media not ready in time, proceeding without it")
	case <-o.done:
		return
	}

	o.post(event{kind: evMediaSettled})
}

func (o *Orchestrator) pumpSignals() {
	for env := range o.opts.Signaler.Events() {
		o.translate(env)
	}
	o.post(event{kind: evTransportClosed})
}

func (o *Orchestrator) translate(env domain.Envelope) {
	switch env.Event {
	case domain.EventConnected:
		var p domain.ConnectedPayload
		if json.Unmarshal(env.Data, &p) == nil {
			o.post(event{kind: evConnected, id: p.ConnectionID})
		}
	case domain.EventReadyForCall:
		var p domain.ReadyForCallPayload
		if json.Unmarshal(env.Data, &p) == nil {
			o.post(event{kind: evReadyForCall, id: p.OffererID})
		}
	case domain.EventOffer:
		var p domain.OfferPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			o.log.Warn("malformed offer dropped", sl.Err(err))
			return
		}
		o.post(event{kind: evOffer, sdp: p.SDP})
	case domain.EventAnswer:
		var p domain.AnswerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			o.log.Warn("malformed answer dropped", sl.Err(err))
			return
		}
		o.post(event{kind: evAnswer, sdp: p.SDP})
	case domain.EventCandidate:
		var p domain.CandidatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			o.log.Warn("malformed candidate dropped", sl.Err(err))
			return
		}
		o.post(event{kind: evCandidate, cand: p.Candidate})
	case domain.EventReceiveMessage:
		var msg domain.ChatMessage
		if json.Unmarshal(env.Data, &msg) == nil {
			o.post(event{kind: evChat, chat: msg})
		}
	case domain.EventUserDisconnected:
		var p domain.UserDisconnectedPayload
		_ = json.Unmarshal(env.Data, &p)
		o.post(event{kind: evPeerLeft, id: p.UserID})
	}
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// handle processes one event. It returns true when the session is over.
func (o *Orchestrator) handle(ev event) bool {
	switch ev.kind {
	case evConnected:
		o.connID = ev.id

	case evMediaSettled:
		o.mediaSettled = true
		if o.phase == PhaseIdle {
			o.joinRoom()
		}
		if o.pendingOfferer != "" {
			offerer := o.pendingOfferer
			o.pendingOfferer = ""
			o.decideRole(offerer)
		}

	case evReadyForCall:
		if o.phase != PhaseAwaitingPeer {
			o.log.Info("ready-for-call ignored", "phase", o.phase.String())
			return false
		}
		if !o.mediaSettled {
			// Unreachable through joinRoom, which only runs after media
			// settles; this covers a relay that announces readiness to a
			// connection that never joined. The bounded watchMedia timer
			// guarantees the deferred decision still happens.
			o.pendingOfferer = ev.id
			return false
		}
		o.decideRole(ev.id)

	case evOffer:
		o.handleOffer(ev.sdp)

	case evAnswer:
		if o.phase != PhaseAwaitingAnswer {
			o.log.Info("answer ignored", "phase", o.phase.String())
			return false
		}
		o.setPhase(PhaseAwaitingConnection)
		o.applyRemote(ev.sdp, false)

	case evCandidate:
		o.handleCandidate(ev.cand)

	case evLocalCandidate:
		if ev.gen != o.gen {
			return false
		}
		if err := o.opts.Signaler.SendCandidate(domain.CandidatePayload{
			RoomID:    o.opts.RoomID,
			Candidate: ev.cand,
		}); err != nil {
			o.log.Warn("failed to send candidate", sl.Err(err))
		}

	case evOfferReady:
		o.handleOfferReady(ev)

	case evAnswerReady:
		o.handleAnswerReady(ev)

	case evRemoteApplied:
		o.handleRemoteApplied(ev)

	case evConnState:
		return o.handleConnState(ev)

	case evChat:
		if o.opts.OnChat != nil {
			o.opts.OnChat(ev.chat)
		}

	case evPeerLeft:
		o.log.Info("peer left", "user_id", ev.id)
		return true

	case evTransportClosed:
		o.log.Info("signaling transport closed")
		return true

	case evEndCall:
		return true
	}

	return false
}

func (o *Orchestrator) joinRoom() {
	if err := o.opts.Signaler.JoinRoom(domain.JoinRoomPayload{
		RoomID: o.opts.RoomID,
		UserID: o.opts.UserID,
	}); err != nil {
		o.log.Error("failed to join room", sl.Err(err))
		o.surface(err)
		return
	}
	o.joined = true
	o.setPhase(PhaseAwaitingPeer)
}

// decideRole turns the relay's offerer designation into a state transition.
// The designation is a deterministic tie-break, never negotiated here.
func (o *Orchestrator) decideRole(offererID string) {
	if !o.ensurePeer() {
		return
	}
	o.attachTracks()

	if offererID == o.connID {
		o.role = RoleOfferer
		o.log.Info("designated offerer")
		o.startOffer(nil)
	} else {
		o.role = RoleAnswerer
		o.log.Info("designated answerer, awaiting offer")
		o.setPhase(PhaseAwaitingOffer)
	}
}

// startOffer enters Offering and creates the offer off-loop. Entering while
// an offer is in flight, or after the handshake has started, is a no-op.
func (o *Orchestrator) startOffer(opts *webrtc.OfferOptions) {
	if o.phase == PhaseOffering {
		o.log.Info("offer already in flight")
		return
	}
	if o.phase > PhaseOffering && !o.recovering {
		o.log.Info("handshake already started, not re-offering")
		return
	}

	o.setPhase(PhaseOffering)

	pc, gen := o.pc, o.gen
	go func() {
		offer, err := pc.CreateOffer(opts)
		if err == nil {
			err = pc.SetLocalDescription(offer)
		}
		o.post(event{kind: evOfferReady, gen: gen, sdp: offer, err: err})
	}()
}

func (o *Orchestrator) handleOfferReady(ev event) {
	if ev.gen != o.gen || o.phase != PhaseOffering {
		return
	}
	if ev.err != nil {
		o.log.Error("offer creation failed", sl.Err(ev.err))
		o.surface(ev.err)
		return
	}

	if err := o.opts.Signaler.SendOffer(domain.OfferPayload{
		RoomID: o.opts.RoomID,
		SDP:    ev.sdp,
	}); err != nil {
		o.log.Error("failed to send offer", sl.Err(err))
		o.surface(err)
		return
	}
	o.log.Info("offer sent")
	o.setPhase(PhaseAwaitingAnswer)
}

// handleOffer accepts the peer's offer when this side is (or is about to be
// told it is) the answerer. Anything later in the handshake means duplicate
// relay delivery; those offers are ignored rather than re-applied.
func (o *Orchestrator) handleOffer(sdp webrtc.SessionDescription) {
	switch o.phase {
	case PhaseAwaitingPeer, PhaseAwaitingOffer:
	default:
		o.log.Info("duplicate offer ignored", "phase", o.phase.String())
		return
	}

	if !o.ensurePeer() {
		return
	}
	o.attachTracks()
	if o.role == RoleUndetermined {
		o.role = RoleAnswerer
	}

	o.setPhase(PhaseAwaitingConnection)
	o.applyRemote(sdp, true)
}

// applyRemote applies the remote description off-loop. needAnswer is set for
// the answerer path, which must respond with its own description.
func (o *Orchestrator) applyRemote(sdp webrtc.SessionDescription, needAnswer bool) {
	pc, gen := o.pc, o.gen
	go func() {
		err := pc.SetRemoteDescription(sdp)
		o.post(event{kind: evRemoteApplied, gen: gen, needAnswer: needAnswer, err: err})
	}()
}

func (o *Orchestrator) handleRemoteApplied(ev event) {
	if ev.gen != o.gen {
		return
	}
	if ev.err != nil {
		// Malformed description: drop it and stay put rather than abort.
		o.log.Warn("remote description rejected", sl.Err(ev.err))
		o.surface(ev.err)
		return
	}

	o.remoteSet = true
	o.flushCandidates()

	if ev.needAnswer {
		pc, gen := o.pc, o.gen
		go func() {
			answer, err := pc.CreateAnswer()
			if err == nil {
				err = pc.SetLocalDescription(answer)
			}
			o.post(event{kind: evAnswerReady, gen: gen, sdp: answer, err: err})
		}()
	}
}

func (o *Orchestrator) handleAnswerReady(ev event) {
	if ev.gen != o.gen {
		return
	}
	if ev.err != nil {
		o.log.Error("answer creation failed", sl.Err(ev.err))
		o.surface(ev.err)
		return
	}

	if err := o.opts.Signaler.SendAnswer(domain.AnswerPayload{
		RoomID: o.opts.RoomID,
		SDP:    ev.sdp,
	}); err != nil {
		o.log.Error("failed to send answer", sl.Err(err))
		o.surface(err)
		return
	}
	o.log.Info("answer sent")
}

// handleCandidate buffers candidates that arrive before a remote description
// and applies later ones directly. The buffer is flushed in receipt order.
func (o *Orchestrator) handleCandidate(cand webrtc.ICECandidateInit) {
	if o.pc == nil || !o.remoteSet {
		o.pending = append(o.pending, cand)
		return
	}
	if err := o.pc.AddICECandidate(cand); err != nil {
		o.log.Warn("candidate rejected", sl.Err(err))
	}
}

func (o *Orchestrator) flushCandidates() {
	for _, cand := range o.pending {
		if err := o.pc.AddICECandidate(cand); err != nil {
			o.log.Warn("buffered candidate rejected", sl.Err(err))
		}
	}
	o.pending = nil
}

func (o *Orchestrator) handleConnState(ev event) bool {
	if ev.gen != o.gen {
		return false
	}

	switch ev.state {
	case webrtc.PeerConnectionStateConnected:
		o.recovering = false
		o.setPhase(PhaseConnected)

	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		if o.phase != PhaseConnected && o.recovering {
			// Recovery already failed once; give up and reset.
			o.log.Warn("ice recovery failed")
			return true
		}
		if o.phase != PhaseConnected {
			return false
		}
		o.log.Warn("transport degraded, attempting ice restart", "state", ev.state.String())
		o.recover()

	case webrtc.PeerConnectionStateClosed:
		return true
	}

	return false
}

// recover attempts an in-place ICE restart without leaving the room. The
// offerer re-offers with the restart flag; the answerer rewinds to await
// that restart offer.
func (o *Orchestrator) recover() {
	o.recovering = true
	o.remoteSet = false
	o.pending = nil

	if o.role == RoleOfferer {
		o.startOffer(&webrtc.OfferOptions{ICERestart: true})
	} else {
		o.setPhase(PhaseAwaitingOffer)
	}
}

func (o *Orchestrator) ensurePeer() bool {
	if o.pc != nil {
		return true
	}

	pc, err := o.opts.NewPeerConn()
	if err != nil {
		o.log.Error("failed to create peer connection", sl.Err(err))
		o.surface(err)
		return false
	}

	gen := o.gen
	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		o.post(event{kind: evLocalCandidate, gen: gen, cand: cand})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		o.post(event{kind: evConnState, gen: gen, state: state})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if o.opts.OnRemoteTrack != nil {
			o.opts.OnRemoteTrack(track)
		}
	})

	o.pc = pc
	return true
}

// attachTracks adds local tracks to the peer connection, once per track.
// Re-attachment never creates duplicate senders.
func (o *Orchestrator) attachTracks() {
	for _, track := range o.opts.Media.Tracks() {
		if _, ok := o.attached[track]; ok {
			continue
		}
		sender, err := o.pc.AddTrack(track)
		if err != nil {
			o.log.Warn("failed to attach local track", sl.Err(err))
			continue
		}
		o.attached[track] = sender
	}
}

// reset tears the session down to a state equivalent to a fresh, unstarted
// one. It is idempotent; in-flight task results are invalidated by bumping
// the generation.
func (o *Orchestrator) reset() {
	o.gen++

	if o.pc != nil {
		if err := o.pc.Close(); err != nil {
			o.log.Warn("peer connection close", sl.Err(err))
		}
		o.pc = nil
	}
	o.attached = make(map[webrtc.TrackLocal]*webrtc.RTPSender)
	o.pending = nil
	o.remoteSet = false
	o.recovering = false
	o.role = RoleUndetermined
	o.pendingOfferer = ""

	if o.joined && !o.left {
		if err := o.opts.Signaler.LeaveRoom(domain.LeaveRoomPayload{
			RoomID: o.opts.RoomID,
			UserID: o.opts.UserID,
		}); err != nil {
			o.log.Info("leave-room not delivered", sl.Err(err))
		}
		o.left = true
	}

	if err := o.opts.Media.Close(); err != nil {
		o.log.Warn("media close", sl.Err(err))
	}

	o.setPhase(PhaseIdle)
}

func (o *Orchestrator) setPhase(p Phase) {
	if o.phase == p {
		return
	}
	o.phase = p
	o.phaseValue.Store(int32(p))
	o.log.Debug("phase change", "phase", p.String())
	if o.opts.OnPhaseChange != nil {
		o.opts.OnPhaseChange(p)
	}
}

func (o *Orchestrator) surface(err error) {
	if o.opts.OnError != nil {
		o.opts.OnError(err)
	}
}
