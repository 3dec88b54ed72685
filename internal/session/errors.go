package session

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/roomlink/internal/proto"
)

var (
	// ErrClosed means the session already ended; start a new one.
	ErrClosed = errors.New("session is closed")

	// ErrOperationPending rejects a second concurrent operation of the
	// same kind. The caller retries after the first one resolves.
	ErrOperationPending = errors.New("operation already in flight")

	// ErrAlreadyInRoom rejects create/join while a room is held.
	ErrAlreadyInRoom = errors.New("already in a room")

	// ErrNotInRoom rejects room-bound operations with no room held.
	ErrNotInRoom = errors.New("not in a room")

	// ErrNoUsername and ErrBadServerURL are credential validation
	// faults; no network traffic is incurred when they fire.
	ErrNoUsername   = errors.New("username is not configured")
	ErrBadServerURL = errors.New("server url must be a ws:// or wss:// address")
)

// SessionError records why a session ended. It is both returned to
// callers of in-flight operations and rendered into the single error
// event observers receive.
type SessionError struct {
	Reason  proto.ClosedReason
	Message string
}

func (e *SessionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("connection closed (%s)", e.Reason)
	}
	return fmt.Sprintf("connection closed (%s): %s", e.Reason, e.Message)
}
