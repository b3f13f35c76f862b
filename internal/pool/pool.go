// Package pool rotates scraping identities under a per-identity hourly cap.
//
// Identities form a ring. Acquire walks the ring from the current position
// and hands out the first identity that is not failed and has room in its
// trailing one-hour window. The request slot is reserved in the same atomic
// step as the cap check, so concurrent workers can never push an identity
// over its cap. Sessions are established lazily, persisted through a
// SessionStore and reused across runs.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/source"
)

const (
	// DefaultHourlyCap is the number of successful calls per identity per window.
	DefaultHourlyCap = 50
	// DefaultWindow is the length of the sliding rate window.
	DefaultWindow = time.Hour
)

// Outcome classifies how a leased call ended.
type Outcome int

const (
	// OutcomeSuccess counts the call against the identity's cap.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited means the source throttled the call.
	OutcomeRateLimited
	// OutcomeAuthFailure means the session was rejected.
	OutcomeAuthFailure
	// OutcomeError is any other failure.
	OutcomeError
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// CredentialOpener decrypts sealed credentials. secret.Sealer implements it.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// UsageRecorder persists identity usage. database.DB implements it.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, handle string, at time.Time) error
	SetIdentityStatus(ctx context.Context, handle string, status model.IdentityStatus) error
}

// Lease is one reserved request slot of one identity.
type Lease struct {
	Identity string
	Session  source.Session

	reservedAt time.Time
	released   atomic.Bool
}

// IdentityStatus is a point-in-time view of one identity.
type IdentityStatus struct {
	Handle           string `json:"handle"`
	LoggedIn         bool   `json:"logged_in"`
	Failed           bool   `json:"failed"`
	RequestsThisHour int    `json:"requests_this_hour"`
	LastError        string `json:"last_error,omitempty"`
}

// identityState is stored by value and replaced as a whole inside Compute.
type identityState struct {
	requests []time.Time
	session  source.Session
	failed   bool
	lastErr  string
}

// Pool is a credential rotation pool. It is safe for concurrent use.
type Pool struct {
	auth      source.Authenticator
	opener    CredentialOpener
	store     SessionStore
	recorder  UsageRecorder
	hourlyCap int
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger

	identities map[string]model.Identity
	ring       []string

	mu  sync.Mutex
	idx int

	state  *xsync.Map[string, identityState]
	logins singleflight.Group
}

// Option configures a Pool.
type Option func(*Pool)

// WithHourlyCap sets the per-identity cap.
func WithHourlyCap(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.hourlyCap = n
		}
	}
}

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithSessionStore sets where session state is persisted.
func WithSessionStore(s SessionStore) Option {
	return func(p *Pool) {
		if s != nil {
			p.store = s
		}
	}
}

// WithUsageRecorder sets where usage and status changes are persisted.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(p *Pool) {
		p.recorder = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pool. Active identities come first in the ring, backup
// identities after them; inactive and banned identities are left out.
// opener may be nil when credentials are stored unsealed.
func New(identities []model.Identity, auth source.Authenticator, opener CredentialOpener, opts ...Option) *Pool {
	p := &Pool{
		auth:       auth,
		opener:     opener,
		store:      NewMemorySessionStore(),
		hourlyCap:  DefaultHourlyCap,
		window:     DefaultWindow,
		now:        time.Now,
		logger:     slog.Default(),
		identities: make(map[string]model.Identity, len(identities)),
		state:      xsync.NewMap[string, identityState](),
	}
	for _, opt := range opts {
		opt(p)
	}

	var backups []string
	for _, id := range identities {
		if _, dup := p.identities[id.Handle]; dup {
			continue
		}
		switch id.Status {
		case model.IdentityActive:
			p.ring = append(p.ring, id.Handle)
		case model.IdentityBackup:
			backups = append(backups, id.Handle)
		default:
			continue
		}
		p.identities[id.Handle] = id
		p.state.Store(id.Handle, identityState{})
	}
	p.ring = append(p.ring, backups...)
	return p
}

// Size returns the number of identities in the ring.
func (p *Pool) Size() int {
	return len(p.ring)
}

// Current returns the identity at the current ring position.
func (p *Pool) Current() string {
	if len(p.ring) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring[p.idx]
}

// Acquire reserves one request slot and returns a lease with a ready
// session. The identity that served the lease becomes the current one.
//
// Identities whose login is rejected are marked failed and skipped. When no
// identity can serve, ErrPoolExhausted is returned, unless a login failed
// for a transient reason, in which case that error is returned so callers
// can retry.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	n := len(p.ring)
	if n == 0 {
		return nil, ErrPoolExhausted
	}

	p.mu.Lock()
	start := p.idx
	p.mu.Unlock()

	var transient error
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos := (start + i) % n
		id := p.ring[pos]

		at, ok := p.reserve(id)
		if !ok {
			continue
		}
		sess, err := p.session(ctx, id)
		if err != nil {
			p.unreserve(id, at)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if source.IsAuthError(err) {
				p.MarkFailed(ctx, id, err)
			} else {
				p.setLastError(id, err)
				p.logger.Warn("login failed", "identity", id, "error", err)
				transient = err
			}
			continue
		}

		if pos != start {
			p.mu.Lock()
			p.idx = pos
			p.mu.Unlock()
			p.logger.Debug("rotated identity", "identity", id)
		}
		return &Lease{Identity: id, Session: sess, reservedAt: at}, nil
	}

	if transient != nil {
		return nil, fmt.Errorf("no identity could log in: %w", transient)
	}
	return nil, ErrPoolExhausted
}

// Release returns a lease. A successful call keeps its slot and is recorded
// through the UsageRecorder; any other outcome frees the slot. Releasing a
// lease twice has no effect.
func (p *Pool) Release(ctx context.Context, lease *Lease, outcome Outcome) {
	if lease == nil || !lease.released.CompareAndSwap(false, true) {
		return
	}
	if outcome != OutcomeSuccess {
		p.unreserve(lease.Identity, lease.reservedAt)
		return
	}
	if p.recorder != nil {
		if err := p.recorder.RecordUsage(ctx, lease.Identity, lease.reservedAt); err != nil {
			p.logger.Warn("failed to record identity usage", "identity", lease.Identity, "error", err)
		}
	}
}

// Rotate advances the current ring position by one.
func (p *Pool) Rotate() {
	if len(p.ring) == 0 {
		return
	}
	p.mu.Lock()
	p.idx = (p.idx + 1) % len(p.ring)
	id := p.ring[p.idx]
	p.mu.Unlock()
	p.logger.Debug("rotated identity", "identity", id)
}

// Evict drops the cached session of identity and deletes its stored state,
// forcing a fresh login on next use.
func (p *Pool) Evict(ctx context.Context, identity string) {
	p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		st.session = nil
		return st, xsync.UpdateOp
	})
	if err := p.store.Delete(ctx, identity); err != nil {
		p.logger.Warn("failed to delete session state", "identity", identity, "error", err)
	}
	p.logger.Info("evicted session", "identity", identity)
}

// MarkFailed excludes identity for the lifetime of the pool and demotes it
// to inactive through the UsageRecorder.
func (p *Pool) MarkFailed(ctx context.Context, identity string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		st.failed = true
		st.session = nil
		st.lastErr = msg
		return st, xsync.UpdateOp
	})
	p.logger.Warn("identity marked failed", "identity", identity, "error", cause)

	if p.recorder != nil {
		if err := p.recorder.SetIdentityStatus(ctx, identity, model.IdentityInactive); err != nil {
			p.logger.Warn("failed to demote identity", "identity", identity, "error", err)
		}
	}
}

// Status returns the state of every identity in ring order.
func (p *Pool) Status() []IdentityStatus {
	now := p.now()
	out := make([]IdentityStatus, 0, len(p.ring))
	for _, id := range p.ring {
		st, _ := p.state.Load(id)
		out = append(out, IdentityStatus{
			Handle:           id,
			LoggedIn:         st.session != nil,
			Failed:           st.failed,
			RequestsThisHour: len(prune(st.requests, now, p.window)),
			LastError:        st.lastErr,
		})
	}
	return out
}

// Check logs identity in (reusing a stored session when it still probes
// fine) without reserving a request slot. It backs the identity check command.
func (p *Pool) Check(ctx context.Context, identity string) error {
	if _, ok := p.identities[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	_, err := p.session(ctx, identity)
	if err != nil {
		if source.IsAuthError(err) {
			p.MarkFailed(ctx, identity, err)
			return fmt.Errorf("%w: %w", ErrAuthFailure, err)
		}
		p.setLastError(identity, err)
	}
	return err
}

// reserve checks the cap and appends a timestamp in one atomic step.
func (p *Pool) reserve(identity string) (time.Time, bool) {
	now := p.now()
	ok := false
	p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
		if !loaded || st.failed {
			return st, xsync.CancelOp
		}
		reqs := prune(st.requests, now, p.window)
		if len(reqs) >= p.hourlyCap {
			st.requests = reqs
			return st, xsync.UpdateOp
		}
		st.requests = append(reqs, now)
		ok = true
		return st, xsync.UpdateOp
	})
	return now, ok
}

func (p *Pool) unreserve(identity string, at time.Time) {
	p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		reqs := make([]time.Time, 0, len(st.requests))
		removed := false
		for _, t := range st.requests {
			if !removed && t.Equal(at) {
				removed = true
				continue
			}
			reqs = append(reqs, t)
		}
		st.requests = reqs
		return st, xsync.UpdateOp
	})
}

func (p *Pool) setLastError(identity string, err error) {
	p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		st.lastErr = err.Error()
		return st, xsync.UpdateOp
	})
}

// prune returns a fresh slice with the timestamps inside the window ending at now.
func prune(reqs []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := make([]time.Time, 0, len(reqs)+1)
	for _, t := range reqs {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// session returns the cached session of identity or establishes one.
// Concurrent callers for the same identity share one login.
func (p *Pool) session(ctx context.Context, identity string) (source.Session, error) {
	if st, ok := p.state.Load(identity); ok && st.session != nil {
		return st.session, nil
	}
	v, err, _ := p.logins.Do(identity, func() (any, error) {
		if st, ok := p.state.Load(identity); ok && st.session != nil {
			return st.session, nil
		}
		sess, err := p.establish(ctx, identity)
		if err != nil {
			return nil, err
		}
		p.state.Compute(identity, func(st identityState, loaded bool) (identityState, xsync.ComputeOp) {
			if !loaded {
				return st, xsync.CancelOp
			}
			st.session = sess
			st.lastErr = ""
			return st, xsync.UpdateOp
		})
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(source.Session), nil //nolint:forcetypeassert // only sessions are stored
}

// establish resumes a stored session when it still probes fine, and
// otherwise logs in and persists the new state.
func (p *Pool) establish(ctx context.Context, identity string) (source.Session, error) {
	cred, err := p.credential(identity)
	if err != nil {
		return nil, err
	}

	state, err := p.store.Load(ctx, identity)
	switch {
	case err == nil:
		sess, rerr := p.auth.Resume(ctx, cred, state)
		if rerr == nil {
			rerr = p.auth.Probe(ctx, sess)
		}
		if rerr == nil {
			p.logger.Debug("reused stored session", "identity", identity)
			return sess, nil
		}
		p.logger.Info("stored session rejected, logging in again", "identity", identity, "error", rerr)
		if derr := p.store.Delete(ctx, identity); derr != nil {
			p.logger.Warn("failed to delete session state", "identity", identity, "error", derr)
		}
	case errors.Is(err, ErrNoSession):
	default:
		p.logger.Warn("failed to load session state", "identity", identity, "error", err)
	}

	sess, err := p.auth.Login(ctx, cred)
	if err != nil {
		return nil, err
	}
	p.logger.Info("logged in", "identity", identity)

	if state, err := sess.State(); err != nil {
		p.logger.Warn("failed to serialize session", "identity", identity, "error", err)
	} else if err := p.store.Save(ctx, identity, state); err != nil {
		p.logger.Warn("failed to save session state", "identity", identity, "error", err)
	}
	return sess, nil
}

func (p *Pool) credential(identity string) (source.Credential, error) {
	id, ok := p.identities[identity]
	if !ok {
		return source.Credential{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	password := id.CredentialRef
	if p.opener != nil {
		plain, err := p.opener.Open(id.CredentialRef)
		if err != nil {
			return source.Credential{}, fmt.Errorf("identity %s: %w: %w", identity, source.ErrAuthRequired, err)
		}
		password = plain
	}
	return source.Credential{Handle: id.Handle, Password: password, ProxyURL: id.ProxyURL}, nil
}
