package orchestrator

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the loop was started before.
	ErrAlreadyRunning = errors.New("orchestrator already started")

	// ErrTooManyErrors is returned by Run after MaxConsecutiveErrors failed
	// iterations in a row.
	ErrTooManyErrors = errors.New("too many consecutive iteration errors")

	// ErrPoolUnavailable marks an iteration in which no identity could serve
	// a request.
	ErrPoolUnavailable = errors.New("credential pool unavailable")
)
