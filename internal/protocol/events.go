package protocol

// PadUpdate carries the full rich-text pad content. Debounced on the
// sending side; applied last-write-wins on receipt.
type PadUpdate struct {
	Content string `msgpack:"content"`
}

// CodeUpdate carries the full code buffer. Debounced like PadUpdate.
type CodeUpdate struct {
	Source string `msgpack:"source"`
}

// InputUpdate carries the stdin buffer handed to the next execution.
type InputUpdate struct {
	Stdin string `msgpack:"stdin"`
}

// LanguageSelect announces the selected execution language. Propagated
// immediately, never debounced.
type LanguageSelect struct {
	Name string `msgpack:"name"`
}

// ExecutionResult is the captured output of a remote execution. The
// participant that ran the code relays it so the counterpart sees the
// same output without re-running.
type ExecutionResult struct {
	Stdout string `msgpack:"stdout"`
	Stderr string `msgpack:"stderr"`
	Failed bool   `msgpack:"failed"`
}

// Combined returns stdout and stderr concatenated for display.
func (r ExecutionResult) Combined() string {
	return r.Stdout + r.Stderr
}

// ChatMessage is a plain text message between room members.
type ChatMessage struct {
	From string `msgpack:"from"`
	Text string `msgpack:"text"`
}

// StateSnapshot is the full shared state, sent in answer to a
// state_request so a (re)joining participant can catch up.
type StateSnapshot struct {
	Pad      string          `msgpack:"pad"`
	Code     string          `msgpack:"code"`
	Input    string          `msgpack:"input"`
	Language string          `msgpack:"language"`
	Output   ExecutionResult `msgpack:"output"`
}

// ErrorPayload carries relay error envelopes.
type ErrorPayload struct {
	Error string `msgpack:"error"`
}
