package protocol

import "github.com/vmihailenco/msgpack/v5"

// Envelope frames every message exchanged with the relay. Payload stays
// opaque to the relay; only the edges decode it.
type Envelope struct {
	Type    string             `msgpack:"type"`
	Room    string             `msgpack:"room,omitempty"`
	Event   string             `msgpack:"event,omitempty"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// Envelope type constants.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeEvent      = "event"

	TypeRoomCreated = "room_created"
	TypeJoinSuccess = "join_success"
	TypePeerJoined  = "peer_joined"
	TypePeerLeft    = "peer_left"
	TypeError       = "error"
)

// Event names, one per concern. The same name is used in both directions;
// the relay excludes the sender from fan-out, so no send/receive naming
// split is needed.
const (
	EventPad           = "pad"
	EventCode          = "code"
	EventInput         = "input"
	EventOutput        = "output"
	EventLanguage      = "language"
	EventChat          = "chat"
	EventStateRequest  = "state_request"
	EventStateSnapshot = "state_snapshot"
)

// NewEvent builds an event envelope for a room with an encoded payload.
func NewEvent(room, event string, payload any) (*Envelope, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Type:    TypeEvent,
		Room:    room,
		Event:   event,
		Payload: b,
	}, nil
}

// DecodePayload decodes the envelope payload into the provided struct.
func (e *Envelope) DecodePayload(v any) error {
	return msgpack.Unmarshal(e.Payload, v)
}

// Encode serializes an envelope for a websocket binary frame.
func Encode(e *Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode parses an envelope from a websocket binary frame.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
