package push

// State is the session lifecycle position. It is the single source of
// truth for which public operations are legal; every entry point checks it
// under the session lock before touching the pipeline.
type State int32

const (
	StateOpened State = iota
	StateInfoSet
	StateConnecting
	StateStreaming
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateInfoSet:
		return "infoset"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canSetInfo reports whether track info may still change: only before a
// connect has begun.
func (s State) canSetInfo() bool {
	return s == StateOpened || s == StateInfoSet
}

// canConnect reports whether a connect may start.
func (s State) canConnect() bool {
	return s == StateOpened || s == StateInfoSet
}

// terminal reports whether the session can never stream again.
func (s State) terminal() bool {
	return s == StateClosing || s == StateClosed || s == StateFailed
}
