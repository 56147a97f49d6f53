package relay

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pairlink/pairlink/internal/protocol"
)

func newTestClient() *Client {
	return &Client{
		id:   uuid.NewString(),
		send: make(chan *protocol.Envelope, 64),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	return hub
}

func joinRoom(t *testing.T, hub *Hub, c *Client, room string) {
	t.Helper()
	hub.inbound <- &inboundEnvelope{
		env:    &protocol.Envelope{Type: protocol.TypeJoinRoom, Room: room},
		sender: c,
	}
	env := waitEnvelope(t, c)
	if env.Type != protocol.TypeJoinSuccess {
		t.Fatalf("expected join_success, got %s", env.Type)
	}
}

func waitEnvelope(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("unexpected envelope: type=%s event=%s", env.Type, env.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()

	joinRoom(t, hub, p, "abc123")

	// Second join of the same room must not double-count P.
	hub.inbound <- &inboundEnvelope{
		env:    &protocol.Envelope{Type: protocol.TypeJoinRoom, Room: "abc123"},
		sender: p,
	}
	waitEnvelope(t, p)

	if got := hub.Members("abc123"); got != 1 {
		t.Errorf("expected 1 member after double join, got %d", got)
	}
}

func TestRelayScopedToRoomAndExcludesSender(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()
	q := newTestClient()
	outsider := newTestClient()

	joinRoom(t, hub, q, "abc123")
	joinRoom(t, hub, p, "abc123")
	waitEnvelope(t, q) // peer_joined for P
	joinRoom(t, hub, outsider, "elsewhere")

	env, err := protocol.NewEvent("abc123", protocol.EventLanguage, protocol.LanguageSelect{Name: "python"})
	if err != nil {
		t.Fatal(err)
	}
	hub.inbound <- &inboundEnvelope{env: env, sender: p}

	got := waitEnvelope(t, q)
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

	assertSilent(t, q)
	assertSilent(t, p)
	assertSilent(t, outsider)
}

func TestLeaveNotifiesPeersAndClosesEmptyRoom(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()
	q := newTestClient()

	joinRoom(t, hub, p, "r1")
	joinRoom(t, hub, q, "r1")
	waitEnvelope(t, p) // peer_joined for Q

	hub.inbound <- &inboundEnvelope{
		env:    &protocol.Envelope{Type: protocol.TypeLeaveRoom, Room: "r1"},
		sender: p,
	}

	got := waitEnvelope(t, q)
	if got.Type != protocol.TypePeerLeft {
		t.Fatalf("expected peer_left, got %s", got.Type)
	}
	if hub.Members("r1") != 1 {
		t.Errorf("expected 1 remaining member, got %d", hub.Members("r1"))
	}

	hub.unregister <- q
	waitForCondition(t, func() bool { return hub.RoomCount() == 0 })
}

func TestDisconnectRemovesMembershipBeforeRelay(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()
	q := newTestClient()

	joinRoom(t, hub, p, "r1")
	joinRoom(t, hub, q, "r1")
	waitEnvelope(t, p) // peer_joined for Q

	hub.unregister <- p
	got := waitEnvelope(t, q)
	if got.Type != protocol.TypePeerLeft {
		t.Fatalf("expected peer_left, got %s", got.Type)
	}

	// Q relays into the now half-empty room; nothing should bounce back
	// and nothing should reach P's closed handle.
	env, err := protocol.NewEvent("r1", protocol.EventPad, protocol.PadUpdate{Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	hub.inbound <- &inboundEnvelope{env: env, sender: q}
	assertSilent(t, q)

	hub.unregister <- q
	waitForCondition(t, func() bool { return hub.RoomCount() == 0 })
}

func TestEventFromNonMemberRejected(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()
	hub.register <- p

	env, err := protocol.NewEvent("ghost", protocol.EventCode, protocol.CodeUpdate{Source: "x"})
	if err != nil {
		t.Fatal(err)
	}
	hub.inbound <- &inboundEnvelope{env: env, sender: p}

	got := waitEnvelope(t, p)
	if got.Type != protocol.TypeError {
		t.Fatalf("expected error envelope, got %s", got.Type)
	}
}

func TestCreateRoomAssignsMembership(t *testing.T) {
	hub := startHub(t)
	p := newTestClient()

	hub.inbound <- &inboundEnvelope{
		env:    &protocol.Envelope{Type: protocol.TypeCreateRoom},
		sender: p,
	}

	got := waitEnvelope(t, p)
	if got.Type != protocol.TypeRoomCreated {
		t.Fatalf("expected room_created, got %s", got.Type)
	}
	if got.Room == "" {
		t.Fatal("expected generated room id")
	}
	if hub.Members(got.Room) != 1 {
		t.Errorf("creator should be a member of %s", got.Room)
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
