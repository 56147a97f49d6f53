package call

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairlink/pairlink/internal/rendezvous"
)

type sentSignal struct {
	to      string
	msgType string
	payload []byte
}

type fakeSignaler struct {
	id      string
	sent    chan sentSignal
	signals chan *rendezvous.Message
}

func newFakeSignaler(id string) *fakeSignaler {
	return &fakeSignaler{
		id:      id,
		sent:    make(chan sentSignal, 32),
		signals: make(chan *rendezvous.Message, 32),
	}
}

func (f *fakeSignaler) ID() string { return f.id }

func (f *fakeSignaler) Send(to, msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.sent <- sentSignal{to: to, msgType: msgType, payload: data}
	return nil
}

func (f *fakeSignaler) Signals() <-chan *rendezvous.Message { return f.signals }

func (f *fakeSignaler) waitFor(t *testing.T, msgType string) sentSignal {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-f.sent:
			if s.msgType == msgType {
				return s
			}
		case <-deadline:
			t.Fatalf("no %q signal sent", msgType)
		}
	}
}

type fakeCapture struct {
	audioEnabled bool
	videoStopped bool
	videoFails   bool
}

func (f *fakeCapture) AcquireAudio() (webrtc.TrackLocal, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "fake",
	)
}

func (f *fakeCapture) AcquireVideo() (webrtc.TrackLocal, error) {
	if f.videoFails {
		return nil, ErrNoVideoSource
	}
	f.videoStopped = false
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "fake",
	)
}

func (f *fakeCapture) SetAudioEnabled(enabled bool) { f.audioEnabled = enabled }
func (f *fakeCapture) StopVideo()                   { f.videoStopped = true }
func (f *fakeCapture) Close() error                 { return nil }

func TestDialSendsOfferAndAwaitsAnswer(t *testing.T) {
	signaler := newFakeSignaler("room1:guest")
	negotiator := NewNegotiator(webrtc.Configuration{}, signaler, &fakeCapture{})
	defer negotiator.Close()
	negotiator.Start()

	require.NoError(t, negotiator.Dial("room1:host"))
	assert.Equal(t, StateAwaitingAnswer, negotiator.State())

	offer := signaler.waitFor(t, rendezvous.TypeOffer)
	assert.Equal(t, "room1:host", offer.to)

	var desc webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(offer.payload, &desc))
	assert.Equal(t, webrtc.SDPTypeOffer, desc.Type)
	assert.NotEmpty(t, desc.SDP)
}

func TestDialRejectedWhenNotIdle(t *testing.T) {
	signaler := newFakeSignaler("room1:guest")
	negotiator := NewNegotiator(webrtc.Configuration{}, signaler, &fakeCapture{})
	defer negotiator.Close()
	negotiator.Start()

	require.NoError(t, negotiator.Dial("room1:host"))
	assert.Error(t, negotiator.Dial("room1:host"))
}

func TestOfferProducesAnswer(t *testing.T) {
	// Build a genuine offer with a second peer connection so the
	// responder path negotiates against real SDP.
	caller, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer caller.Close()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "caller")
	require.NoError(t, err)
	_, err = caller.AddTrack(audio)
	require.NoError(t, err)

	offer, err := caller.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, caller.SetLocalDescription(offer))

	offerJSON, err := json.Marshal(caller.LocalDescription())
	require.NoError(t, err)

	signaler := newFakeSignaler("room1:host")
	negotiator := NewNegotiator(webrtc.Configuration{}, signaler, &fakeCapture{})
	defer negotiator.Close()

	var states []State
	negotiator.OnStateChange(func(s State) { states = append(states, s) })
	negotiator.Start()

	signaler.signals <- &rendezvous.Message{
		Type:    rendezvous.TypeOffer,
		From:    "room1:guest",
		Payload: offerJSON,
	}

	answer := signaler.waitFor(t, rendezvous.TypeAnswer)
	assert.Equal(t, "room1:guest", answer.to)

	var desc webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(answer.payload, &desc))
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	assert.Contains(t, states, StateAwaitingMedia)
	assert.Contains(t, states, StateAnswering)
}

func TestMuteTogglesAudioPump(t *testing.T) {
	capture := &fakeCapture{audioEnabled: true}
	negotiator := NewNegotiator(webrtc.Configuration{}, newFakeSignaler("a"), capture)
	defer negotiator.Close()

	negotiator.SetMuted(true)
	assert.True(t, negotiator.Muted())
	assert.False(t, capture.audioEnabled)

	negotiator.SetMuted(false)
	assert.False(t, negotiator.Muted())
	assert.True(t, capture.audioEnabled)
}

func TestVideoToggleSurvivesReacquireFailure(t *testing.T) {
	capture := &fakeCapture{}
	signaler := newFakeSignaler("room1:guest")
	negotiator := NewNegotiator(webrtc.Configuration{}, signaler, capture)
	defer negotiator.Close()
	negotiator.Start()

	require.NoError(t, negotiator.Dial("room1:host"))
	require.True(t, negotiator.VideoOn())

	negotiator.DisableVideo()
	assert.False(t, negotiator.VideoOn())
	assert.True(t, capture.videoStopped)

	capture.videoFails = true
	assert.Error(t, negotiator.EnableVideo())
	assert.False(t, negotiator.VideoOn(), "failed reacquire must not report video on")

	capture.videoFails = false
	require.NoError(t, negotiator.EnableVideo())
	assert.True(t, negotiator.VideoOn())
}

func TestByeEndsCall(t *testing.T) {
	signaler := newFakeSignaler("room1:guest")
	negotiator := NewNegotiator(webrtc.Configuration{}, signaler, &fakeCapture{})
	negotiator.Start()

	require.NoError(t, negotiator.Dial("room1:host"))

	signaler.signals <- &rendezvous.Message{Type: rendezvous.TypeBye, From: "room1:host"}

	require.Eventually(t, func() bool {
		return negotiator.State() == StateEnded
	}, 5*time.Second, 10*time.Millisecond)
}
