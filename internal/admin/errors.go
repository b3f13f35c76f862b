package admin

import "errors"

var (
	// ErrNoSealer is returned by AddIdentity when the service was built
	// without a credential sealer.
	ErrNoSealer = errors.New("credential sealer not configured")

	// ErrEmptyCredential is returned by AddIdentity for an empty password.
	ErrEmptyCredential = errors.New("empty credential")
)
