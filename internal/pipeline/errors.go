package pipeline

import "errors"

var (
	// ErrNotFetched is returned by steps that need profile data when the
	// fetch step did not run.
	ErrNotFetched = errors.New("profile data was not fetched")
)
