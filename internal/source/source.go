// Package source defines the contract between scoutgraph and a remote
// profile data source.
//
// A source is split into an Authenticator, which turns credentials into
// sessions, and a DataSource, which reads profiles, recent activity and
// follow lists through a session. Implementations classify failures with
// the sentinel errors in this package; any other error is treated as
// transient by callers.
package source

import (
	"context"

	"github.com/nao1215/scoutgraph/internal/model"
)

// Credential is the plaintext login material of one identity. It lives only
// for the duration of a login call.
type Credential struct {
	Handle   string
	Password string //nolint:gosec // plaintext only in memory
	ProxyURL string
}

// Session is an authenticated session bound to one identity.
type Session interface {
	// Identity returns the handle of the identity that owns the session.
	Identity() string
	// State serializes the session so it can be resumed later.
	State() ([]byte, error)
}

// Authenticator creates and validates sessions.
type Authenticator interface {
	// Login performs a fresh login.
	Login(ctx context.Context, cred Credential) (Session, error)
	// Resume rebuilds a session from state returned by Session.State.
	// It does not contact the source.
	Resume(ctx context.Context, cred Credential, state []byte) (Session, error)
	// Probe checks that a resumed session is still accepted.
	Probe(ctx context.Context, s Session) error
}

// DataSource reads public data about handles.
type DataSource interface {
	GetProfile(ctx context.Context, s Session, handle string) (model.Profile, error)
	// GetRecentActivity returns up to n most recent items, newest first.
	GetRecentActivity(ctx context.Context, s Session, handle string, n int) ([]model.ActivityItem, error)
	// GetFollowing returns up to limit handles followed by handle.
	GetFollowing(ctx context.Context, s Session, handle string, limit int) ([]string, error)
}

// Provider is a complete source.
type Provider interface {
	Authenticator
	DataSource
}
