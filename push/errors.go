package push

import "errors"

// The discriminated outcomes of the public operations. Callers match them
// with errors.Is; wrapped causes stay reachable through errors.Unwrap.
var (
	// ErrInvalidArg reports a nil handle, a malformed url or track info,
	// or frame data that conflicts with the configured codec.
	ErrInvalidArg = errors.New("invalid argument")

	// ErrNoMem reports that the bounded send queue is full. The frame was
	// not taken; the caller may retry or drop.
	ErrNoMem = errors.New("no memory")

	// ErrWrongState reports an operation that is illegal in the session's
	// current state, e.g. push before connect finished.
	ErrWrongState = errors.New("wrong state")

	// ErrConnectFail reports a handshake, dial or RTMP negotiation
	// failure. The session is unusable afterwards except for Close.
	ErrConnectFail = errors.New("connect failed")

	// ErrWriteFail reports a transport write error after streaming began.
	// The session has moved to the failed state; every later push reports
	// it again until Close.
	ErrWriteFail = errors.New("write failed")
)
