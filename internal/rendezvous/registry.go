package rendezvous

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // enough for SDP offers
)

// Registry tracks connected rendezvous peers by call identifier and
// forwards signaling frames between them. It holds no room state and no
// call state; it is a dumb addressed forwarder.
type Registry struct {
	peers map[string]*peer
	mu    sync.RWMutex
}

// peer is one connected signaling endpoint.
type peer struct {
	id   string
	conn *websocket.Conn
	send chan *Message
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*peer)}
}

// Serve runs the signaling session for one upgraded connection until it
// closes. requestedID lets a client pick its own identifier (room-derived
// ids); when empty a random one is assigned. Either way the id is echoed
// back in an open frame before any forwarding starts.
func (r *Registry) Serve(conn *websocket.Conn, requestedID string) {
	id := requestedID
	if id == "" {
		id = uuid.NewString()
	}

	p := &peer{
		id:   id,
		conn: conn,
		send: make(chan *Message, 32),
	}

	r.mu.Lock()
	if _, taken := r.peers[id]; taken {
		r.mu.Unlock()
		conn.WriteJSON(&Message{Type: TypeError, Payload: mustJSON(ErrorPayload{Error: "call id already in use"})})
		conn.Close()
		return
	}
	r.peers[id] = p
	r.mu.Unlock()

	slog.Info("rendezvous peer connected", "peer", id)

	p.send <- &Message{Type: TypeOpen, To: id}

	go p.writePump()
	r.readPump(p)
}

// readPump reads frames from one peer and forwards them. Runs on the
// serving goroutine; its return tears the peer down.
func (r *Registry) readPump(p *peer) {
	defer func() {
		r.remove(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("rendezvous read", "peer", p.id, "err", err)
			}
			return
		}

		msg.From = p.id
		r.forward(p, &msg)
	}
}

// forward delivers a frame to its addressee. A frame to an unknown peer
// bounces back as an error so callers can fail fast instead of waiting
// out the offer timeout.
func (r *Registry) forward(from *peer, msg *Message) {
	r.mu.RLock()
	target, ok := r.peers[msg.To]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("rendezvous frame for unknown peer", "from", from.id, "to", msg.To, "type", msg.Type)
		select {
		case from.send <- &Message{Type: TypeError, Payload: mustJSON(ErrorPayload{Error: "no such peer: " + msg.To})}:
		default:
		}
		return
	}

	select {
	case target.send <- msg:
	default:
		slog.Warn("dropping frame for slow peer", "to", msg.To, "type", msg.Type)
	}
}

func (r *Registry) remove(p *peer) {
	r.mu.Lock()
	if r.peers[p.id] == p {
		delete(r.peers, p.id)
	}
	r.mu.Unlock()
	close(p.send)
	slog.Info("rendezvous peer disconnected", "peer", p.id)
}

// Peers returns the number of connected peers.
func (r *Registry) Peers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
