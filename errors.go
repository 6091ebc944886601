package i3ipc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by connection operations.
var (
	// ErrProtocolDesync is returned when a frame does not start with the magic string.
	// The connection cannot be used afterwards; no resynchronization is attempted.
	ErrProtocolDesync = errors.New("i3ipc: protocol desync")
	// ErrIncompleteFrame is returned when the peer closes the stream in the middle of a frame.
	ErrIncompleteFrame = errors.New("i3ipc: stream closed with incomplete frame")
	// ErrMessageTooLarge is returned when a payload exceeds the configured maximum.
	ErrMessageTooLarge = errors.New("i3ipc: message too large")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("i3ipc: connection closed")
	// ErrSubscribeRejected is returned when the peer answers a subscription with success=false.
	ErrSubscribeRejected = errors.New("i3ipc: subscription rejected")
	// ErrNoSocketPath is returned when no socket path could be discovered.
	ErrNoSocketPath = errors.New("i3ipc: no socket path found")
)

// ConnectReason classifies why a connection attempt failed.
type ConnectReason int

const (
	// ReasonOther is any failure not covered by a more specific reason.
	ReasonOther ConnectReason = iota
	// ReasonNotFound means the socket path does not exist.
	ReasonNotFound
	// ReasonPermissionDenied means the socket exists but may not be opened.
	ReasonPermissionDenied
	// ReasonRefused means nothing is listening on the socket.
	ReasonRefused
)

func (r ConnectReason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonRefused:
		return "refused"
	default:
		return "other"
	}
}

// ConnectError is returned by Dial when the endpoint cannot be reached.
type ConnectError struct {
	Path   string
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("i3ipc: connect %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// OpError is a read or write failure of the underlying stream.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return "i3ipc: " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// PayloadError reports a frame whose payload could not be decoded.
// The frame boundary was intact, so the connection remains usable.
type PayloadError struct {
	Type MessageType
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("i3ipc: decode %s payload: %v", e.Type, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }
