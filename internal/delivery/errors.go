package delivery

import "errors"

var (
	// ErrSendInFlight rejects a submit while a reply sequence is running.
	ErrSendInFlight = errors.New("a reply is already in flight")
	// ErrEmptyMessage rejects a blank submit.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator is closed")
	// ErrUnknownReaction rejects a reaction kind that is not offered.
	ErrUnknownReaction = errors.New("unknown reaction kind")
)
