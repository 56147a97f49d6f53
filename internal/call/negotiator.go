package call

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/pairlink/pairlink/internal/rendezvous"
)

// Signaler is the slice of the rendezvous client the negotiator needs,
// kept as an interface so tests can drive it with an in-memory fake.
type Signaler interface {
	ID() string
	Send(to, msgType string, payload any) error
	Signals() <-chan *rendezvous.Message
}

// Negotiator runs the two-party media handshake for one participant.
// Signaling travels through the rendezvous channel; once connected,
// media flows directly peer to peer and the relay never sees it.
type Negotiator struct {
	cfg      webrtc.Configuration
	signaler Signaler
	capture  Capture

	mu          sync.Mutex
	state       State
	pc          *webrtc.PeerConnection
	videoSender *webrtc.RTPSender
	remote      string
	muted       bool
	videoOn     bool
	pending     []webrtc.ICECandidateInit
	remoteSet   bool

	onState       func(State)
	onError       func(error)
	onRemoteTrack func(kind string)

	closeOnce sync.Once
	done      chan struct{}
}

// NewNegotiator creates an idle negotiator. Start launches the signal
// loop; initiators then call Dial, responders just wait for an offer.
func NewNegotiator(cfg webrtc.Configuration, signaler Signaler, capture Capture) *Negotiator {
	return &Negotiator{
		cfg:      cfg,
		signaler: signaler,
		capture:  capture,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// OnStateChange registers the state observer. Must be set before Start.
func (n *Negotiator) OnStateChange(fn func(State)) { n.onState = fn }

// OnError registers the observer for non-fatal call errors (failed media
// re-acquire, bad signals). Must be set before Start.
func (n *Negotiator) OnError(fn func(error)) { n.onError = fn }

// OnRemoteTrack registers the observer for inbound media tracks. Must be
// set before Start.
func (n *Negotiator) OnRemoteTrack(fn func(kind string)) { n.onRemoteTrack = fn }

// Start runs the signal loop in the background.
func (n *Negotiator) Start() {
	go n.loop()
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Dial starts the call as initiator: acquire local media, create the
// offer, send it to the remote call id, and await the answer.
func (n *Negotiator) Dial(remoteID string) error {
	n.mu.Lock()
	if n.state != StateIdle {
		n.mu.Unlock()
		return fmt.Errorf("cannot dial in state %q", n.state)
	}
	n.remote = remoteID
	n.mu.Unlock()

	pc, err := n.newPeerConnection()
	if err != nil {
		return err
	}

	if err := n.addLocalTracks(pc); err != nil {
		pc.Close()
		return err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	// Trickle ICE: candidates follow via the OnICECandidate handler.
	if err := n.signaler.Send(remoteID, rendezvous.TypeOffer, pc.LocalDescription()); err != nil {
		pc.Close()
		return err
	}

	n.setState(StateAwaitingAnswer)
	return nil
}

// SetMuted toggles the local audio pump. No renegotiation happens.
func (n *Negotiator) SetMuted(muted bool) {
	n.mu.Lock()
	n.muted = muted
	n.mu.Unlock()
	n.capture.SetAudioEnabled(!muted)
}

// Muted reports the local mute state.
func (n *Negotiator) Muted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}

// VideoOn reports whether local video is currently flowing.
func (n *Negotiator) VideoOn() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.videoOn
}

// DisableVideo stops the outbound video track and releases the capture
// source.
func (n *Negotiator) DisableVideo() {
	n.mu.Lock()
	sender := n.videoSender
	n.videoOn = false
	n.mu.Unlock()

	n.capture.StopVideo()
	if sender != nil {
		if err := sender.ReplaceTrack(nil); err != nil {
			n.reportError(fmt.Errorf("detach video track: %w", err))
		}
	}
}

// EnableVideo re-acquires the video source and swaps it back into the
// connection. Re-acquisition can fail; the error is surfaced and the
// call carries on audio-only.
func (n *Negotiator) EnableVideo() error {
	track, err := n.capture.AcquireVideo()
	if err != nil {
		return fmt.Errorf("reacquire video: %w", err)
	}

	n.mu.Lock()
	sender := n.videoSender
	n.mu.Unlock()

	if sender == nil {
		n.capture.StopVideo()
		return fmt.Errorf("no video sender on connection")
	}
	if err := sender.ReplaceTrack(track); err != nil {
		n.capture.StopVideo()
		return fmt.Errorf("attach video track: %w", err)
	}

	n.mu.Lock()
	n.videoOn = true
	n.mu.Unlock()
	return nil
}

// Close tears the call down. The remote side sees connection loss; no
// explicit leave signal is required.
func (n *Negotiator) Close() {
	n.closeOnce.Do(func() {
		close(n.done)

		n.mu.Lock()
		pc := n.pc
		n.pc = nil
		n.mu.Unlock()

		if pc != nil {
			pc.Close()
		}
		n.capture.Close()
		n.setState(StateEnded)
	})
}

func (n *Negotiator) loop() {
	for {
		select {
		case msg, ok := <-n.signaler.Signals():
			if !ok {
				n.Close()
				return
			}
			n.handleSignal(msg)

		case <-n.done:
			return
		}
	}
}

func (n *Negotiator) handleSignal(msg *rendezvous.Message) {
	switch msg.Type {

	case rendezvous.TypeOffer:
		n.handleOffer(msg)

	case rendezvous.TypeAnswer:
		n.handleAnswer(msg)

	case rendezvous.TypeCandidate:
		n.handleCandidate(msg)

	case rendezvous.TypeBye:
		n.Close()

	case rendezvous.TypeError:
		n.reportError(fmt.Errorf("rendezvous: %s", string(msg.Payload)))

	default:
		slog.Debug("ignoring signal", "type", msg.Type)
	}
}

// handleOffer runs the responder path: acquire media, answer, trickle
// candidates until a direct path is up.
func (n *Negotiator) handleOffer(msg *rendezvous.Message) {
	n.mu.Lock()
	if n.state != StateIdle {
		n.mu.Unlock()
		n.reportError(fmt.Errorf("offer in state %q ignored", n.state))
		return
	}
	n.remote = msg.From
	n.mu.Unlock()

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(msg.Payload, &offer); err != nil {
		n.reportError(fmt.Errorf("bad offer: %w", err))
		return
	}

	n.setState(StateAwaitingMedia)

	pc, err := n.newPeerConnection()
	if err != nil {
		n.reportError(err)
		n.setState(StateEnded)
		return
	}

	if err := n.addLocalTracks(pc); err != nil {
		n.reportError(err)
		pc.Close()
		n.setState(StateEnded)
		return
	}

	n.setState(StateAnswering)

	if err := pc.SetRemoteDescription(offer); err != nil {
		n.reportError(fmt.Errorf("set remote description: %w", err))
		pc.Close()
		n.setState(StateEnded)
		return
	}
	n.flushCandidates(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		n.reportError(fmt.Errorf("create answer: %w", err))
		pc.Close()
		n.setState(StateEnded)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		n.reportError(fmt.Errorf("set local description: %w", err))
		pc.Close()
		n.setState(StateEnded)
		return
	}

	if err := n.signaler.Send(msg.From, rendezvous.TypeAnswer, pc.LocalDescription()); err != nil {
		n.reportError(err)
	}
}

func (n *Negotiator) handleAnswer(msg *rendezvous.Message) {
	n.mu.Lock()
	pc := n.pc
	state := n.state
	n.mu.Unlock()

	if pc == nil || state != StateAwaitingAnswer {
		n.reportError(fmt.Errorf("answer in state %q ignored", state))
		return
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(msg.Payload, &answer); err != nil {
		n.reportError(fmt.Errorf("bad answer: %w", err))
		return
	}

	if err := pc.SetRemoteDescription(answer); err != nil {
		n.reportError(fmt.Errorf("set remote description: %w", err))
		return
	}
	n.flushCandidates(pc)
}

// handleCandidate adds a trickled ICE candidate, buffering any that
// arrive before the remote description is set.
func (n *Negotiator) handleCandidate(msg *rendezvous.Message) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.Payload, &candidate); err != nil {
		n.reportError(fmt.Errorf("bad candidate: %w", err))
		return
	}

	n.mu.Lock()
	pc := n.pc
	ready := n.remoteSet
	if !ready {
		n.pending = append(n.pending, candidate)
	}
	n.mu.Unlock()

	if !ready || pc == nil {
		return
	}
	if err := pc.AddICECandidate(candidate); err != nil {
		n.reportError(fmt.Errorf("add candidate: %w", err))
	}
}

// flushCandidates replays candidates buffered before the remote
// description existed.
func (n *Negotiator) flushCandidates(pc *webrtc.PeerConnection) {
	n.mu.Lock()
	n.remoteSet = true
	buffered := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, candidate := range buffered {
		if err := pc.AddICECandidate(candidate); err != nil {
			n.reportError(fmt.Errorf("add buffered candidate: %w", err))
		}
	}
}

func (n *Negotiator) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(n.cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		n.mu.Lock()
		remote := n.remote
		n.mu.Unlock()
		if err := n.signaler.Send(remote, rendezvous.TypeCandidate, c.ToJSON()); err != nil {
			slog.Debug("candidate send failed", "err", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			n.setState(StateConnected)
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			n.setState(StateEnded)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if n.onRemoteTrack != nil {
			n.onRemoteTrack(track.Kind().String())
		}
		// Drain inbound media; the CLI renders nothing but must keep the
		// receive path flowing.
		go func() {
			for {
				if _, _, err := track.ReadRTP(); err != nil {
					return
				}
			}
		}()
	})

	n.mu.Lock()
	n.pc = pc
	n.remoteSet = false
	n.mu.Unlock()

	return pc, nil
}

// addLocalTracks attaches captured audio/video. Audio is required;
// a missing video source degrades to audio-only.
func (n *Negotiator) addLocalTracks(pc *webrtc.PeerConnection) error {
	audio, err := n.capture.AcquireAudio()
	if err != nil {
		return fmt.Errorf("acquire audio: %w", err)
	}
	if _, err := pc.AddTrack(audio); err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}

	video, err := n.capture.AcquireVideo()
	if err != nil {
		n.reportError(fmt.Errorf("acquire video: %w", err))
		return nil
	}
	sender, err := pc.AddTrack(video)
	if err != nil {
		return fmt.Errorf("add video track: %w", err)
	}

	n.mu.Lock()
	n.videoSender = sender
	n.videoOn = true
	n.mu.Unlock()
	return nil
}

func (n *Negotiator) reportError(err error) {
	if n.onError != nil {
		n.onError(err)
	}
}

func (n *Negotiator) setState(state State) {
	n.mu.Lock()
	if n.state == state || n.state == StateEnded {
		n.mu.Unlock()
		return
	}
	n.state = state
	n.mu.Unlock()

	slog.Debug("call state", "state", state.String())
	if n.onState != nil {
		n.onState(state)
	}
}
