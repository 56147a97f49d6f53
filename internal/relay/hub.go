package relay

import (
	"log/slog"
	"sync"

	"github.com/pairlink/pairlink/internal/protocol"
	"github.com/vmihailenco/msgpack/v5"
)

// Hub is the central brain of the relay server. It tracks which clients
// are in which room and fans event envelopes out to room members.
//
// All state transitions happen on the single Run loop; the mutex only
// covers the read-side accessors used by tests and the health endpoint.
type Hub struct {
	// rooms maps room IDs to their current membership set.
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundEnvelope

	mu sync.RWMutex
}

// inboundEnvelope pairs a decoded envelope with the client that sent it,
// so fan-out can exclude the sender.
type inboundEnvelope struct {
	env    *protocol.Envelope
	sender *Client
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundEnvelope),
	}
}

// Run starts the hub's main processing loop. It is the only goroutine
// that mutates room membership, so join/leave/relay never interleave.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// Not in a room yet; membership starts on create_room/join_room.
			slog.Debug("client registered", "client", client.id)

		case client := <-h.unregister:
			// Must happen before the connection handle is gone for good:
			// the readPump sends here synchronously on disconnect.
			h.leave(client)
			close(client.send)
			slog.Debug("client unregistered", "client", client.id)

		case in := <-h.inbound:
			h.handle(in.env, in.sender)
		}
	}
}

// handle dispatches a single client envelope.
func (h *Hub) handle(env *protocol.Envelope, sender *Client) {
	switch env.Type {

	case protocol.TypeCreateRoom:
		roomID := h.newRoomID()
		h.join(sender, roomID)
		sender.send <- &protocol.Envelope{Type: protocol.TypeRoomCreated, Room: roomID}
		slog.Info("room created", "room", roomID, "client", sender.id)

	case protocol.TypeJoinRoom:
		if env.Room == "" {
			h.sendError(sender, "room id required")
			return
		}
		h.join(sender, env.Room)
		sender.send <- &protocol.Envelope{Type: protocol.TypeJoinSuccess, Room: env.Room}

	case protocol.TypeLeaveRoom:
		h.leave(sender)

	case protocol.TypeEvent:
		if sender.room == "" || sender.room != env.Room {
			h.sendError(sender, "not a member of room "+env.Room)
			return
		}
		h.relay(env, sender)

	default:
		slog.Warn("unknown envelope type", "type", env.Type, "client", sender.id)
	}
}

// join adds a client to a room, creating the room on demand. Joining a
// room you are already in is a no-op; a client is in one room at a time,
// so joining a different room leaves the old one first.
func (h *Hub) join(c *Client, roomID string) {
	if c.room == roomID {
		return
	}
	if c.room != "" {
		h.leave(c)
	}

	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[roomID] = members
	}
	members[c] = true
	c.room = roomID
	count := len(members)
	h.mu.Unlock()

	slog.Info("client joined room", "room", roomID, "client", c.id, "members", count)

	// Tell everyone already in the room.
	h.notify(roomID, c, protocol.TypePeerJoined)
}

// leave removes a client from its room. The last member out deletes the
// room record entirely; no tombstone is kept.
func (h *Hub) leave(c *Client) {
	if c.room == "" {
		return
	}
	roomID := c.room
	c.room = ""

	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(members, c)
	empty := len(members) == 0
	if empty {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	if empty {
		slog.Info("room closed", "room", roomID)
		return
	}

	slog.Info("client left room", "room", roomID, "client", c.id)
	h.notify(roomID, c, protocol.TypePeerLeft)
}

// relay delivers an event envelope to every member of its room except
// the sender. Delivery is fire and forget: a recipient whose send buffer
// is full simply misses the update.
func (h *Hub) relay(env *protocol.Envelope, sender *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[env.Room]
	if !ok {
		return
	}

	for member := range members {
		if member == sender {
			continue
		}
		select {
		case member.send <- env:
		default:
			slog.Warn("dropping event for slow client", "room", env.Room, "client", member.id, "event", env.Event)
		}
	}
}

// notify sends a membership envelope to every room member except cause.
func (h *Hub) notify(roomID string, cause *Client, envelopeType string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for member := range h.rooms[roomID] {
		if member == cause {
			continue
		}
		select {
		case member.send <- &protocol.Envelope{Type: envelopeType, Room: roomID}:
		default:
		}
	}
}

func (h *Hub) sendError(c *Client, msg string) {
	payload, err := msgpack.Marshal(protocol.ErrorPayload{Error: msg})
	if err != nil {
		return
	}
	select {
	case c.send <- &protocol.Envelope{Type: protocol.TypeError, Payload: payload}:
	default:
	}
}

// newRoomID generates a memorable room ID that is not currently in use.
func (h *Hub) newRoomID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for {
		id := generateRoomID()
		if _, ok := h.rooms[id]; !ok {
			return id
		}
	}
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Members returns the number of clients currently in a room.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
