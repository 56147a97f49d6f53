package transport

import (
	"github.com/pairlink/pairlink/internal/protocol"
)

// Handler routes incoming relay envelopes to typed channels so callers
// can select on exactly the signals they care about.
type Handler struct {
	client *Client

	RoomCreated  chan string
	JoinSuccess  chan string
	PeerJoined   chan struct{}
	PeerLeft     chan struct{}
	Events       chan *protocol.Envelope
	Error        chan string
	Disconnected chan struct{}

	closed bool
}

// NewHandler creates a new envelope router.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		RoomCreated:  make(chan string, 1),
		JoinSuccess:  make(chan string, 1),
		PeerJoined:   make(chan struct{}, 4),
		PeerLeft:     make(chan struct{}, 4),
		Events:       make(chan *protocol.Envelope, 32),
		Error:        make(chan string, 1),
		Disconnected: make(chan struct{}),
	}
}

// Start consumes incoming envelopes until the connection drops, then
// closes Disconnected so the UI can surface a reconnect notice.
func (h *Handler) Start() {
	for env := range h.client.Incoming() {
		switch env.Type {

		case protocol.TypeRoomCreated:
			h.RoomCreated <- env.Room

		case protocol.TypeJoinSuccess:
			h.JoinSuccess <- env.Room

		case protocol.TypePeerJoined:
			select {
			case h.PeerJoined <- struct{}{}:
			default:
			}

		case protocol.TypePeerLeft:
			select {
			case h.PeerLeft <- struct{}{}:
			default:
			}

		case protocol.TypeEvent:
			h.Events <- env

		case protocol.TypeError:
			h.handleError(env)

		default:
		}
	}

	if !h.closed {
		h.closed = true
		close(h.Disconnected)
		close(h.Events)
	}
}

func (h *Handler) handleError(env *protocol.Envelope) {
	var payload protocol.ErrorPayload
	if err := env.DecodePayload(&payload); err != nil || payload.Error == "" {
		h.Error <- "unknown error from relay"
		return
	}

	select {
	case h.Error <- payload.Error:
	default:
	}
}
