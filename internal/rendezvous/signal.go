package rendezvous

import "encoding/json"

// Message is the signaling frame exchanged through the rendezvous
// endpoint. Frames are addressed by ephemeral call identifiers, not by
// room: the rendezvous channel is fully out of band from the relay.
type Message struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// TypeOpen is sent by the server right after connect and carries the
	// peer's assigned call identifier in To.
	TypeOpen = "open"

	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeBye       = "bye"
	TypeError     = "error"
)

// ErrorPayload carries rendezvous error frames.
type ErrorPayload struct {
	Error string `json:"error"`
}
