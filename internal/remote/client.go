// Package remote performs single logical fetches against a profile source
// through the credential pool, with retry, rotation and backoff.
//
// Each call runs a small state machine. A rate-limited attempt rotates the
// pool and sleeps rateLimitDelay times the attempt number. A rejected
// session is evicted and the pool rotated before the next attempt. Any
// other error sleeps baseDelay times the attempt number. Not-found answers
// and an exhausted pool end the call at once.
package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/pool"
	"github.com/nao1215/scoutgraph/internal/source"
)

// Operation names reported in FetchError.Op.
const (
	OpProfile   = "profile"
	OpActivity  = "activity"
	OpFollowing = "following"
)

const (
	defaultMaxRetries     = 3
	defaultBaseDelay      = 5 * time.Second
	defaultRateLimitDelay = 10 * time.Second
)

// Leaser hands out identities. pool.Pool implements it.
type Leaser interface {
	Acquire(ctx context.Context) (*pool.Lease, error)
	Release(ctx context.Context, lease *pool.Lease, outcome pool.Outcome)
	Rotate()
	Evict(ctx context.Context, identity string)
}

// Client fetches profile data with retries.
type Client struct {
	pool           Leaser
	src            source.DataSource
	maxRetries     int
	baseDelay      time.Duration
	rateLimitDelay time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the number of attempts per call.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff unit for transient errors.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithRateLimitDelay sets the backoff unit after a rate limit.
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.rateLimitDelay = d
		}
	}
}

// WithSleeper replaces the context-aware sleep used between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client.
func NewClient(leaser Leaser, src source.DataSource, opts ...Option) *Client {
	c := &Client{
		pool:           leaser,
		src:            src,
		maxRetries:     defaultMaxRetries,
		baseDelay:      defaultBaseDelay,
		rateLimitDelay: defaultRateLimitDelay,
		sleep:          Sleep,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProfile returns the profile of handle.
func (c *Client) FetchProfile(ctx context.Context, handle string) (model.Profile, error) {
	return call(ctx, c, handle, OpProfile, func(ctx context.Context, s source.Session) (model.Profile, error) {
		return c.src.GetProfile(ctx, s, handle)
	})
}

// FetchRecentActivity returns up to n most recent activity items of handle.
func (c *Client) FetchRecentActivity(ctx context.Context, handle string, n int) ([]model.ActivityItem, error) {
	if n <= 0 {
		return []model.ActivityItem{}, nil
	}
	items, err := call(ctx, c, handle, OpActivity, func(ctx context.Context, s source.Session) ([]model.ActivityItem, error) {
		return c.src.GetRecentActivity(ctx, s, handle, n)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ActivityItem{}
	}
	return items[:min(n, len(items))], nil
}

// FetchFollowing returns up to limit handles followed by handle. A handle
// with no visible follow list yields an empty slice, not an error.
func (c *Client) FetchFollowing(ctx context.Context, handle string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	handles, err := call(ctx, c, handle, OpFollowing, func(ctx context.Context, s source.Session) ([]string, error) {
		return c.src.GetFollowing(ctx, s, handle, limit)
	})
	if errors.Is(err, source.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if handles == nil {
		handles = []string{}
	}
	return handles[:min(limit, len(handles))], nil
}

// FetchComplete fetches the profile, up to n activity items and up to limit
// followed handles. Only a profile failure is returned; activity and follow
// list failures degrade to empty slices.
func (c *Client) FetchComplete(ctx context.Context, handle string, n, limit int) (model.CompleteData, error) {
	profile, err := c.FetchProfile(ctx, handle)
	if err != nil {
		return model.CompleteData{}, err
	}
	data := model.CompleteData{Profile: profile, Activity: []model.ActivityItem{}, Following: []string{}}

	if items, err := c.FetchRecentActivity(ctx, handle, n); err != nil {
		if ctx.Err() != nil {
			return model.CompleteData{}, ctx.Err()
		}
		c.logger.Warn("activity fetch failed, continuing without samples", "handle", handle, "error", err)
	} else {
		data.Activity = items
	}

	if following, err := c.FetchFollowing(ctx, handle, limit); err != nil {
		if ctx.Err() != nil {
			return model.CompleteData{}, ctx.Err()
		}
		c.logger.Warn("following fetch failed, continuing without follow list", "handle", handle, "error", err)
	} else {
		data.Following = following
	}
	return data, nil
}

// attemptState is the classification of one attempt.
type attemptState int

const (
	stateSuccess attemptState = iota
	stateRateLimited
	stateAuthFailure
	stateTransient
	stateNotFound
)

func classify(err error) attemptState {
	switch {
	case err == nil:
		return stateSuccess
	case errors.Is(err, source.ErrNotFound):
		return stateNotFound
	case errors.Is(err, source.ErrRateLimited):
		return stateRateLimited
	case source.IsAuthError(err):
		return stateAuthFailure
	default:
		return stateTransient
	}
}

// call runs fn through the pool until it succeeds, hits a terminal error
// or runs out of attempts.
func call[T any](ctx context.Context, c *Client, handle, op string, fn func(context.Context, source.Session) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lease, err := c.pool.Acquire(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if errors.Is(err, pool.ErrPoolExhausted) {
				return zero, &FetchError{Handle: handle, Op: op, Attempts: attempt, Err: err}
			}
			lastErr = err
			c.logger.Debug("acquire failed, backing off", "handle", handle, "op", op, "attempt", attempt, "error", err)
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.baseDelay*time.Duration(attempt)); err != nil {
					return zero, err
				}
			}
			continue
		}

		v, err := fn(ctx, lease.Session)
		if err != nil && ctx.Err() != nil {
			c.pool.Release(ctx, lease, pool.OutcomeError)
			return zero, ctx.Err()
		}

		switch classify(err) {
		case stateSuccess:
			c.pool.Release(ctx, lease, pool.OutcomeSuccess)
			return v, nil

		case stateNotFound:
			c.pool.Release(ctx, lease, pool.OutcomeError)
			return zero, &FetchError{Handle: handle, Op: op, Attempts: attempt, Err: err}

		case stateRateLimited:
			c.pool.Release(ctx, lease, pool.OutcomeRateLimited)
			c.pool.Rotate()
			lastErr = err
			c.logger.Info("rate limited, rotating identity",
				"handle", handle, "op", op, "identity", lease.Identity, "attempt", attempt)
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.rateLimitDelay*time.Duration(attempt)); err != nil {
					return zero, err
				}
			}

		case stateAuthFailure:
			c.pool.Release(ctx, lease, pool.OutcomeAuthFailure)
			c.pool.Evict(ctx, lease.Identity)
			c.pool.Rotate()
			lastErr = err
			c.logger.Info("session rejected, evicting",
				"handle", handle, "op", op, "identity", lease.Identity, "attempt", attempt)

		case stateTransient:
			c.pool.Release(ctx, lease, pool.OutcomeError)
			lastErr = err
			c.logger.Debug("transient error, backing off",
				"handle", handle, "op", op, "attempt", attempt, "error", err)
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.baseDelay*time.Duration(attempt)); err != nil {
					return zero, err
				}
			}
		}
	}
	return zero, &FetchError{Handle: handle, Op: op, Attempts: c.maxRetries, Err: lastErr}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
