package rendezvous

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const openWait = 10 * time.Second

// Client is the participant side of the rendezvous channel. It connects
// to the signaling endpoint, learns its call identifier from the open
// frame, and then exchanges addressed frames with other call ids.
type Client struct {
	conn     *websocket.Conn
	id       string
	incoming chan *Message
	outgoing chan *Message
	done     chan struct{}
	closed   bool
}

// Dial connects to the rendezvous endpoint and waits for the server's
// open frame. requestedID may be empty to accept an assigned identifier.
func Dial(serverURL, requestedID string) (*Client, error) {
	u := serverURL
	if requestedID != "" {
		u = fmt.Sprintf("%s?id=%s", serverURL, requestedID)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// The open frame must arrive before anything else.
	conn.SetReadDeadline(time.Now().Add(openWait))
	var open Message
	if err := conn.ReadJSON(&open); err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for open frame: %w", err)
	}
	if open.Type == TypeError {
		conn.Close()
		return nil, fmt.Errorf("rendezvous rejected connection: %s", errorText(&open))
	}
	if open.Type != TypeOpen {
		conn.Close()
		return nil, fmt.Errorf("expected open frame, got %q", open.Type)
	}

	c := &Client{
		conn:     conn,
		id:       open.To,
		incoming: make(chan *Message, 32),
		outgoing: make(chan *Message, 32),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// ID returns the call identifier assigned on connect.
func (c *Client) ID() string {
	return c.id
}

// Send addresses a frame to another call identifier.
func (c *Client) Send(to, msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode signal payload: %w", err)
	}

	select {
	case c.outgoing <- &Message{Type: msgType, To: to, Payload: raw}:
		return nil
	case <-c.done:
		return fmt.Errorf("rendezvous connection closed")
	}
}

// Signals returns the channel of inbound frames. It is closed when the
// connection drops.
func (c *Client) Signals() <-chan *Message {
	return c.incoming
}

// Close shuts the connection down.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
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

func errorText(msg *Message) string {
	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Error == "" {
		return "unknown error"
	}
	return p.Error
}
