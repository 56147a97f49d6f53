package transport

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairlink/pairlink/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// Client manages the websocket connection to the relay server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Envelope
	outgoing  chan *protocol.Envelope
	done      chan struct{}
	closed    bool
}

// NewClient creates a new relay client for the given websocket URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Envelope, 32),
		outgoing:  make(chan *protocol.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection to the relay.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads envelopes from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}

		c.incoming <- env
	}
}

// writePump writes envelopes to the websocket connection and sends
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := protocol.Encode(env)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendEnvelope queues an envelope for the relay.
func (c *Client) SendEnvelope(env *protocol.Envelope) {
	select {
	case c.outgoing <- env:
	case <-c.done:
	}
}

// CreateRoom asks the relay to create a room with a generated id.
func (c *Client) CreateRoom() {
	c.SendEnvelope(&protocol.Envelope{Type: protocol.TypeCreateRoom})
}

// Join enters a room, creating it on the relay if needed.
func (c *Client) Join(room string) {
	c.SendEnvelope(&protocol.Envelope{Type: protocol.TypeJoinRoom, Room: room})
}

// Leave exits a room.
func (c *Client) Leave(room string) {
	c.SendEnvelope(&protocol.Envelope{Type: protocol.TypeLeaveRoom, Room: room})
}

// Emit relays a named event with an encoded payload to the room's other
// members.
func (c *Client) Emit(room, event string, payload any) error {
	env, err := protocol.NewEvent(room, event, payload)
	if err != nil {
		return err
	}
	c.SendEnvelope(env)
	return nil
}

// Incoming returns the channel of envelopes from the relay. It is closed
// when the connection drops.
func (c *Client) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Close closes the websocket connection and cleans up resources.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
