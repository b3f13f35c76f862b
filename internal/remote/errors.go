package remote

import (
	"errors"
	"fmt"
)

// ErrFetchFailed is matched by every error returned once a fetch gives up.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError describes a fetch that gave up. It matches ErrFetchFailed
// and the last underlying error with errors.Is.
type FetchError struct {
	Handle   string
	Op       string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s of %s failed after %d attempt(s): %v", e.Op, e.Handle, e.Attempts, e.Err)
}

// Unwrap returns ErrFetchFailed and the underlying error.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}
