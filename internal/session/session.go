package session

import (
	"log/slog"
	"time"

	"github.com/pairlink/pairlink/internal/protocol"
)

// Conn is the slice of the transport a session needs. Sessions take it
// as a dependency so tests can run them against an in-memory fake.
type Conn interface {
	Emit(room, event string, payload any) error
}

// Update tells the UI which fragment changed; the new values are read
// from Snapshot. Chat carries the message for chat events.
type Update struct {
	Event string
	Chat  *protocol.ChatMessage
}

// Session owns one participant's view of a room: the local workspace
// mirror, debounced outbound propagation, and last-write-wins
// application of inbound events.
type Session struct {
	conn Conn
	room string
	name string

	ws *Workspace

	pad   *Debouncer
	code  *Debouncer
	input *Debouncer

	updates chan Update
}

// New creates a session for a joined room. debounce is the quiet period
// for free-text fragments; language/output changes always go out
// immediately.
func New(conn Conn, room, name, language string, debounce time.Duration) *Session {
	return &Session{
		conn:    conn,
		room:    room,
		name:    name,
		ws:      NewWorkspace(language),
		pad:     NewDebouncer(debounce),
		code:    NewDebouncer(debounce),
		input:   NewDebouncer(debounce),
		updates: make(chan Update, 64),
	}
}

// Room returns the joined room id.
func (s *Session) Room() string {
	return s.room
}

// Updates returns the channel the UI consumes to re-render.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Snapshot returns the current fragment values.
func (s *Session) Snapshot() Fragments {
	return s.ws.Snapshot()
}

// SetPad records a local pad edit and arms the debounced send. N rapid
// edits within the window produce exactly one relay event carrying the
// final content.
func (s *Session) SetPad(content string) {
	s.ws.SetPad(content)
	s.pad.Trigger(func() {
		s.emit(protocol.EventPad, protocol.PadUpdate{Content: s.ws.Snapshot().Pad})
	})
}

// SetCode records a local code-buffer edit and arms the debounced send.
func (s *Session) SetCode(source string) {
	s.ws.SetCode(source)
	s.code.Trigger(func() {
		s.emit(protocol.EventCode, protocol.CodeUpdate{Source: s.ws.Snapshot().Code})
	})
}

// SetInput records a local stdin edit and arms the debounced send.
func (s *Session) SetInput(stdin string) {
	s.ws.SetInput(stdin)
	s.input.Trigger(func() {
		s.emit(protocol.EventInput, protocol.InputUpdate{Stdin: s.ws.Snapshot().Input})
	})
}

// SelectLanguage switches the execution language and propagates it right
// away; language flips are never debounced.
func (s *Session) SelectLanguage(name string) {
	s.ws.SetLanguage(name)
	s.emit(protocol.EventLanguage, protocol.LanguageSelect{Name: name})
}

// PublishResult stores an execution result locally and relays it so the
// counterpart sees the same output without re-running. Failed requests
// never come through here; they stay local to the invoking user.
func (s *Session) PublishResult(result protocol.ExecutionResult) {
	s.ws.SetOutput(result)
	s.emit(protocol.EventOutput, result)
}

// SetLocalOutput stores output that must not be relayed (dispatch
// errors shown to the invoking user only).
func (s *Session) SetLocalOutput(result protocol.ExecutionResult) {
	s.ws.SetOutput(result)
}

// SendChat relays a chat message.
func (s *Session) SendChat(text string) {
	s.emit(protocol.EventChat, protocol.ChatMessage{From: s.name, Text: text})
}

// RequestState asks room members for a full snapshot. Called after every
// (re)join: local fragments stay stale until an answer arrives.
func (s *Session) RequestState() {
	s.emit(protocol.EventStateRequest, struct{}{})
}

// HandleEvent applies one inbound relay event. The local copy is
// overwritten unconditionally: last message wins by arrival order.
func (s *Session) HandleEvent(env *protocol.Envelope) {
	switch env.Event {

	case protocol.EventPad:
		var p protocol.PadUpdate
		if env.DecodePayload(&p) == nil {
			s.ws.SetPad(p.Content)
			s.push(Update{Event: env.Event})
		}

	case protocol.EventCode:
		var p protocol.CodeUpdate
		if env.DecodePayload(&p) == nil {
			s.ws.SetCode(p.Source)
			s.push(Update{Event: env.Event})
		}

	case protocol.EventInput:
		var p protocol.InputUpdate
		if env.DecodePayload(&p) == nil {
			s.ws.SetInput(p.Stdin)
			s.push(Update{Event: env.Event})
		}

	case protocol.EventLanguage:
		var p protocol.LanguageSelect
		if env.DecodePayload(&p) == nil {
			s.ws.SetLanguage(p.Name)
			s.push(Update{Event: env.Event})
		}

	case protocol.EventOutput:
		var p protocol.ExecutionResult
		if env.DecodePayload(&p) == nil {
			s.ws.SetOutput(p)
			s.push(Update{Event: env.Event})
		}

	case protocol.EventChat:
		var p protocol.ChatMessage
		if env.DecodePayload(&p) == nil {
			s.push(Update{Event: env.Event, Chat: &p})
		}

	case protocol.EventStateRequest:
		frags := s.ws.Snapshot()
		s.emit(protocol.EventStateSnapshot, protocol.StateSnapshot{
			Pad:      frags.Pad,
			Code:     frags.Code,
			Input:    frags.Input,
			Language: frags.Language,
			Output:   frags.Output,
		})

	case protocol.EventStateSnapshot:
		var p protocol.StateSnapshot
		if env.DecodePayload(&p) == nil {
			s.ws.Replace(Fragments{
				Pad:      p.Pad,
				Code:     p.Code,
				Input:    p.Input,
				Language: p.Language,
				Output:   p.Output,
			})
			s.push(Update{Event: env.Event})
		}

	default:
		slog.Debug("ignoring unknown event", "event", env.Event)
	}
}

// Flush fires all pending debounced sends, then stops the timers. Called
// on teardown so trailing keystrokes still reach the peer.
func (s *Session) Flush() {
	s.pad.Flush()
	s.code.Flush()
	s.input.Flush()
}

// Close cancels pending debounced sends without firing them.
func (s *Session) Close() {
	s.pad.Stop()
	s.code.Stop()
	s.input.Stop()
}

func (s *Session) emit(event string, payload any) {
	if err := s.conn.Emit(s.room, event, payload); err != nil {
		slog.Error("emit failed", "event", event, "err", err)
	}
}

func (s *Session) push(u Update) {
	select {
	case s.updates <- u:
	default:
		// A stalled UI misses intermediate updates; the next snapshot
		// read still sees the latest state.
	}
}
