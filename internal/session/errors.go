package session

import "errors"

var (
	ErrRunInProgress      = errors.New("a run is already streaming for this session")
	ErrInterruptPending   = errors.New("an interrupt is awaiting resolution")
	ErrNoPendingInterrupt = errors.New("no interrupt is awaiting resolution")
	ErrAlreadyResolved    = errors.New("interrupt already resolved")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownAgent       = errors.New("unknown agent")
)
