package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairlink/pairlink/internal/protocol"
)

type emission struct {
	room    string
	event   string
	payload any
}

type fakeConn struct {
	mu       sync.Mutex
	emissions []emission
}

func (f *fakeConn) Emit(room, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emissions = append(f.emissions, emission{room: room, event: event, payload: payload})
	return nil
}

func (f *fakeConn) all() []emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emission, len(f.emissions))
	copy(out, f.emissions)
	return out
}

func newTestSession(debounce time.Duration) (*Session, *fakeConn) {
	conn := &fakeConn{}
	return New(conn, "xyz", "alice", "python", debounce), conn
}

func TestDebounceCoalescesRapidEdits(t *testing.T) {
	sess, conn := newTestSession(100 * time.Millisecond)

	// Burst of keystrokes well inside the window.
	sess.SetCode("h")
	time.Sleep(10 * time.Millisecond)
	sess.SetCode("he")
	time.Sleep(10 * time.Millisecond)
	sess.SetCode("hello world")

	time.Sleep(250 * time.Millisecond)

	got := conn.all()
	require.Len(t, got, 1, "N rapid edits must produce exactly one relay event")
	assert.Equal(t, protocol.EventCode, got[0].event)
	assert.Equal(t, protocol.CodeUpdate{Source: "hello world"}, got[0].payload)
}

func TestDebouncedTextScenario(t *testing.T) {
	// P sends "hello" then 50ms later "hello world" (window 100ms): the
	// peer receives exactly one text update equal to "hello world".
	sess, conn := newTestSession(100 * time.Millisecond)

	sess.SetPad("hello")
	time.Sleep(50 * time.Millisecond)
	sess.SetPad("hello world")

	time.Sleep(250 * time.Millisecond)

	got := conn.all()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.PadUpdate{Content: "hello world"}, got[0].payload)
}

func TestLanguageAndOutputPropagateImmediately(t *testing.T) {
	sess, conn := newTestSession(time.Hour) // debounce must not apply

	sess.SelectLanguage("go")
	sess.PublishResult(protocol.ExecutionResult{Stdout: "2\n"})

	got := conn.all()
	require.Len(t, got, 2)
	assert.Equal(t, protocol.EventLanguage, got[0].event)
	assert.Equal(t, protocol.LanguageSelect{Name: "go"}, got[0].payload)
	assert.Equal(t, protocol.EventOutput, got[1].event)
	assert.Equal(t, protocol.ExecutionResult{Stdout: "2\n"}, got[1].payload)
}

func TestInboundOverwritesLastWriteWins(t *testing.T) {
	sess, _ := newTestSession(time.Hour)

	first, err := protocol.NewEvent("xyz", protocol.EventPad, protocol.PadUpdate{Content: "from P"})
	require.NoError(t, err)
	second, err := protocol.NewEvent("xyz", protocol.EventPad, protocol.PadUpdate{Content: "from Q"})
	require.NoError(t, err)

	sess.HandleEvent(first)
	sess.HandleEvent(second)

	// Arrival order decides, regardless of which was typed first.
	assert.Equal(t, "from Q", sess.Snapshot().Pad)
}

func TestStateRequestAnsweredWithSnapshot(t *testing.T) {
	sess, conn := newTestSession(time.Hour)
	sess.ws.SetPad("notes")
	sess.ws.SetCode("print(1+1)")
	sess.ws.SetOutput(protocol.ExecutionResult{Stdout: "2\n"})

	req, err := protocol.NewEvent("xyz", protocol.EventStateRequest, struct{}{})
	require.NoError(t, err)
	sess.HandleEvent(req)

	got := conn.all()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.EventStateSnapshot, got[0].event)
	snap, ok := got[0].payload.(protocol.StateSnapshot)
	require.True(t, ok)
	assert.Equal(t, "notes", snap.Pad)
	assert.Equal(t, "print(1+1)", snap.Code)
	assert.Equal(t, "python", snap.Language)
	assert.Equal(t, "2\n", snap.Output.Stdout)
}

func TestSnapshotReplacesAllFragments(t *testing.T) {
	sess, _ := newTestSession(time.Hour)
	sess.ws.SetPad("stale")

	env, err := protocol.NewEvent("xyz", protocol.EventStateSnapshot, protocol.StateSnapshot{
		Pad:      "fresh pad",
		Code:     "fresh code",
		Language: "go",
	})
	require.NoError(t, err)
	sess.HandleEvent(env)

	frags := sess.Snapshot()
	assert.Equal(t, "fresh pad", frags.Pad)
	assert.Equal(t, "fresh code", frags.Code)
	assert.Equal(t, "go", frags.Language)
}

func TestFlushFiresPendingEdit(t *testing.T) {
	sess, conn := newTestSession(time.Hour)

	sess.SetPad("parting words")
	require.Empty(t, conn.all(), "nothing should go out before the window elapses")

	sess.Flush()

	got := conn.all()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.PadUpdate{Content: "parting words"}, got[0].payload)
}

func TestLocalOutputIsNotRelayed(t *testing.T) {
	sess, conn := newTestSession(time.Hour)

	sess.SetLocalOutput(protocol.ExecutionResult{Stderr: "dispatch failed", Failed: true})

	assert.Empty(t, conn.all())
	assert.True(t, sess.Snapshot().Output.Failed)
}
