package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairlink/pairlink/internal/protocol"
	"github.com/pairlink/pairlink/internal/relay"
	"github.com/pairlink/pairlink/internal/rendezvous"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := relay.NewHub()
	go hub.Run()
	registry := rendezvous.NewRegistry()

	ts := httptest.NewServer(NewMux(hub, registry))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialRelay(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws"), nil)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env *protocol.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	env, err := protocol.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func joinRoom(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()
	sendEnvelope(t, conn, &protocol.Envelope{Type: protocol.TypeJoinRoom, Room: room})
	env := readEnvelope(t, conn)
	if env.Type != protocol.TypeJoinSuccess {
		t.Fatalf("expected join_success, got %s", env.Type)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	ts := startTestServer(t)

	q := dialRelay(t, ts)
	p := dialRelay(t, ts)

	joinRoom(t, q, "abc123")
	joinRoom(t, p, "abc123")

	if env := readEnvelope(t, q); env.Type != protocol.TypePeerJoined {
		t.Fatalf("expected peer_joined on Q, got %s", env.Type)
	}

	event, err := protocol.NewEvent("abc123", protocol.EventLanguage, protocol.LanguageSelect{Name: "python"})
	if err != nil {
		t.Fatal(err)
	}
	sendEnvelope(t, p, event)

	got := readEnvelope(t, q)
	if got.Type != protocol.TypeEvent || got.Event != protocol.EventLanguage {
		t.Fatalf("expected language event, got type=%s event=%s", got.Type, got.Event)
	}
	var sel protocol.LanguageSelect
	if err := got.DecodePayload(&sel); err != nil {
		t.Fatal(err)
	}
	if sel.Name != "python" {
		t.Errorf("expected python, got %q", sel.Name)
	}

	// Sender must not hear its own event.
	p.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := p.ReadMessage(); err == nil {
		t.Fatal("sender received its own event")
	}
}

func TestPeerLeftOnDisconnect(t *testing.T) {
	ts := startTestServer(t)

	q := dialRelay(t, ts)
	p := dialRelay(t, ts)

	joinRoom(t, q, "r1")
	joinRoom(t, p, "r1")
	readEnvelope(t, q) // peer_joined

	p.Close()

	if env := readEnvelope(t, q); env.Type != protocol.TypePeerLeft {
		t.Fatalf("expected peer_left, got %s", env.Type)
	}
}

func TestRendezvousForwarding(t *testing.T) {
	ts := startTestServer(t)

	a, err := rendezvous.Dial(wsURL(ts, "/rtc"), "room1:host")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.ID() != "room1:host" {
		t.Fatalf("expected requested id to stick, got %q", a.ID())
	}

	b, err := rendezvous.Dial(wsURL(ts, "/rtc"), "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.ID() == "" {
		t.Fatal("expected assigned call id")
	}

	if err := b.Send(a.ID(), rendezvous.TypeOffer, map[string]string{"sdp": "v=0"}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-a.Signals():
		if msg.Type != rendezvous.TypeOffer {
			t.Fatalf("expected offer, got %s", msg.Type)
		}
		if msg.From != b.ID() {
			t.Errorf("expected From=%s, got %s", b.ID(), msg.From)
		}
		var payload map[string]string
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatal(err)
		}
		if payload["sdp"] != "v=0" {
			t.Errorf("payload mangled: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("offer never forwarded")
	}
}

func TestRendezvousUnknownPeerBounces(t *testing.T) {
	ts := startTestServer(t)

	a, err := rendezvous.Dial(wsURL(ts, "/rtc"), "")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Send("nobody", rendezvous.TypeOffer, map[string]string{}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-a.Signals():
		if msg.Type != rendezvous.TypeError {
			t.Fatalf("expected error frame, got %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error frame for unknown peer")
	}
}
