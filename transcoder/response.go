package transcoder

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Session.Poll and the lifecycle methods.
var (
	// ErrEmpty indicates that no response is available yet. The reader may
	// still be running.
	ErrEmpty = errors.New("no response available")

	// ErrDisconnected indicates that the reader goroutine exited without
	// emitting a terminal response, for example because it was cancelled.
	// Callers should treat it as an unexpected end of stream.
	ErrDisconnected = errors.New("transcoder disconnected")

	// ErrInvalidState is returned for illegal lifecycle transitions such as
	// starting a session twice or polling one that was never started.
	ErrInvalidState = errors.New("invalid session state")
)

// Kind tags a Response.
type Kind int

const (
	// KindData carries a chunk of transcoded bytes.
	KindData Kind = iota
	// KindEndOfStream means the process closed its output cleanly.
	KindEndOfStream
	// KindError means the process failed to start or its output could not be read.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindEndOfStream:
		return "end_of_stream"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ErrorKind classifies a terminal failure.
type ErrorKind int

const (
	// SpawnFailure means the transcoder process could not be started.
	SpawnFailure ErrorKind = iota
	// ReadFault means reading the process output failed after a successful spawn.
	ReadFault
)

func (k ErrorKind) String() string {
	switch k {
	case SpawnFailure:
		return "spawn_failure"
	case ReadFault:
		return "read_fault"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is the failure carried by a KindError response.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Response is one message handed from the reader goroutine to the session owner.
type Response struct {
	Kind Kind
	Data []byte
	Err  *Error
}

// Terminal reports whether no further responses follow this one.
func (r Response) Terminal() bool {
	return r.Kind == KindEndOfStream || r.Kind == KindError
}

func dataResponse(p []byte) Response {
	return Response{Kind: KindData, Data: p}
}

func endOfStream() Response {
	return Response{Kind: KindEndOfStream}
}

func errorResponse(kind ErrorKind, cause error) Response {
	return Response{Kind: KindError, Err: &Error{Kind: kind, Cause: cause}}
}
