package relay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pairlink/pairlink/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Pad and code buffers travel
	// whole, so this also bounds document size.
	maxMessageSize = 256 * 1024
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// id identifies the participant in logs.
	id string

	// room is the ID of the room the client is in, empty before joining.
	// Touched only by the hub's Run loop.
	room string

	// send is the buffered channel of outbound envelopes. The writePump
	// goroutine drains it to the websocket.
	send chan *protocol.Envelope
}

// NewClient wraps an upgraded websocket connection and registers it with
// the hub. Call Start to begin the read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan *protocol.Envelope, 256),
	}
	hub.register <- c
	return c
}

// Start launches the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps envelopes from the websocket connection to the hub.
//
// There is at most one reader per connection; all reads happen here. The
// deferred unregister is what keeps membership removal synchronous with
// the disconnect: the hub drops the client before any later relay can
// pick the dead handle.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read", "client", c.id, "err", err)
			}
			break
		}

		env, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("undecodable envelope", "client", c.id, "err", err)
			continue
		}

		c.hub.inbound <- &inboundEnvelope{env: env, sender: c}
	}
}

// writePump pumps envelopes from the hub to the websocket connection and
// keeps the connection alive with periodic pings. There is at most one
// writer per connection; all writes happen here.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := protocol.Encode(env)
			if err != nil {
				slog.Error("encode envelope", "client", c.id, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				slog.Error("websocket write", "client", c.id, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
