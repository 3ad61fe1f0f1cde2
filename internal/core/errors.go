package core

import "errors"

var (
	// ErrInvalidOffer marks a malformed SDP offer; no session is kept for it.
	ErrInvalidOffer = errors.New("invalid offer")
	// ErrStreamKeyRejected marks a broadcaster offer whose key failed validation.
	ErrStreamKeyRejected = errors.New("stream key rejected")
	// ErrBroadcastActive marks a broadcaster offer for a key that already has
	// a live broadcast.
	ErrBroadcastActive = errors.New("broadcast already active")
	// ErrSessionClosed marks an operation on a session that is already gone.
	ErrSessionClosed = errors.New("session closed")
)
