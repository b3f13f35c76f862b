package pool

import "errors"

var (
	// ErrPoolExhausted is returned by Acquire when every identity is either
	// failed or at its hourly cap.
	ErrPoolExhausted = errors.New("credential pool exhausted")

	// ErrAuthFailure marks an identity whose login was rejected. It wraps
	// the source error that caused it.
	ErrAuthFailure = errors.New("identity authentication failed")

	// ErrNoSession is returned by a SessionStore when no state is stored.
	ErrNoSession = errors.New("no stored session")

	// ErrUnknownIdentity is returned for an identity that is not in the pool.
	ErrUnknownIdentity = errors.New("identity is not in the pool")
)
