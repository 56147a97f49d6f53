package session

import (
	"sync"

	"github.com/pairlink/pairlink/internal/protocol"
)

// Fragments are the four independent pieces of shared state. Each one is
// last-write-wins: whatever arrives latest overwrites, no merging.
type Fragments struct {
	Pad      string
	Code     string
	Input    string
	Language string
	Output   protocol.ExecutionResult
}

// Workspace is the local mirror of the shared document fragments. Copies
// on different participants may diverge while both are typing; they
// converge once one side goes quiet for a debounce interval.
type Workspace struct {
	mu    sync.RWMutex
	frags Fragments
}

// NewWorkspace creates a workspace with the default language selected.
func NewWorkspace(language string) *Workspace {
	return &Workspace{frags: Fragments{Language: language}}
}

func (w *Workspace) SetPad(content string) {
	w.mu.Lock()
	w.frags.Pad = content
	w.mu.Unlock()
}

func (w *Workspace) SetCode(source string) {
	w.mu.Lock()
	w.frags.Code = source
	w.mu.Unlock()
}

func (w *Workspace) SetInput(stdin string) {
	w.mu.Lock()
	w.frags.Input = stdin
	w.mu.Unlock()
}

func (w *Workspace) SetLanguage(name string) {
	w.mu.Lock()
	w.frags.Language = name
	w.mu.Unlock()
}

func (w *Workspace) SetOutput(result protocol.ExecutionResult) {
	w.mu.Lock()
	w.frags.Output = result
	w.mu.Unlock()
}

// Replace overwrites every fragment at once (state snapshot catch-up).
func (w *Workspace) Replace(frags Fragments) {
	w.mu.Lock()
	w.frags = frags
	w.mu.Unlock()
}

// Snapshot returns a copy of all fragments.
func (w *Workspace) Snapshot() Fragments {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frags
}
