package source

import "errors"

var (
	// ErrRateLimited is returned when the source throttles the identity.
	ErrRateLimited = errors.New("rate limited by source")

	// ErrAuthRequired is returned when the session is missing, expired or rejected.
	ErrAuthRequired = errors.New("authentication required")

	// ErrChallengeRequired is returned when the source demands an
	// interactive security challenge for the identity.
	ErrChallengeRequired = errors.New("security challenge required")

	// ErrTwoFactorRequired is returned when login needs a second factor.
	ErrTwoFactorRequired = errors.New("two-factor authentication required")

	// ErrNotFound is returned when the handle does not exist or is not visible.
	ErrNotFound = errors.New("handle not found")
)

// IsAuthError reports whether err means the identity or its session cannot
// be used as is.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrChallengeRequired) ||
		errors.Is(err, ErrTwoFactorRequired)
}
