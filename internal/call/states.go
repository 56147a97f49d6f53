package call

// State is the call negotiation state machine. Initiators move
// Idle → AwaitingAnswer → Connected; responders move
// Idle → AwaitingMedia → Answering → Connected. Every path ends in
// Ended, including cancellation and connection loss.
type State int

const (
	StateIdle State = iota
	StateAwaitingAnswer
	StateAwaitingMedia
	StateAnswering
	StateConnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAnswer:
		return "awaiting answer"
	case StateAwaitingMedia:
		return "acquiring media"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
