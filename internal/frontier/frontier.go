// Package frontier maintains the breadth-first crawl frontier on top of a Store.
//
// Seeds are always served before discovered handles, discovered handles are
// served shallowest level first, and a handle is never enqueued twice no
// matter which record kind already owns it.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/scoutgraph/internal/database"
	"github.com/nao1215/scoutgraph/internal/model"
)

// Store is the persistence contract the frontier relies on.
// database.DB implements it.
type Store interface {
	PendingSeeds(ctx context.Context, limit int) ([]model.SeedHandle, error)
	PendingDiscovered(ctx context.Context, limit, maxLevel int) ([]model.DiscoveredHandle, error)
	TransitionSeed(ctx context.Context, id int64, to model.Status) error
	TransitionDiscovered(ctx context.Context, id int64, to model.Status, result *database.DiscoveredResult) error
	InsertDiscovered(ctx context.Context, handle, parent string, level int) (model.DiscoveredHandle, error)
	ExistsAnywhere(ctx context.Context, handle string) (bool, error)
	InsertAccepted(ctx context.Context, c *model.AcceptedCandidate) (bool, error)
}

// Outcome is the evaluation data written with a pass or fail status.
type Outcome struct {
	Metrics   *model.ProfileMetrics
	Rationale *model.Rationale
}

// Frontier serves batches of candidates and records their progress.
type Frontier struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frontier) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Frontier over store.
func New(store Store, opts ...Option) *Frontier {
	f := &Frontier{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NextBatch returns up to limit candidates: pending seeds first, then
// pending discovered handles with level <= maxLevel by ascending level.
func (f *Frontier) NextBatch(ctx context.Context, limit, maxLevel int) ([]model.CandidateRef, error) {
	if limit <= 0 {
		return nil, nil
	}

	seeds, err := f.store.PendingSeeds(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending seeds: %w", err)
	}
	batch := make([]model.CandidateRef, 0, limit)
	for _, s := range seeds {
		batch = append(batch, model.CandidateRef{
			Kind:   model.KindSeed,
			ID:     s.ID,
			Handle: s.Handle,
			Level:  0,
		})
	}

	remaining := limit - len(batch)
	if remaining <= 0 || maxLevel < 1 {
		return batch, nil
	}
	disc, err := f.store.PendingDiscovered(ctx, remaining, maxLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending discovered handles: %w", err)
	}
	for _, d := range disc {
		batch = append(batch, model.CandidateRef{
			Kind:         model.KindDiscovered,
			ID:           d.ID,
			Handle:       d.Handle,
			Level:        d.Level,
			ParentHandle: d.ParentHandle,
		})
	}
	return batch, nil
}

// MarkProcessing records that a worker started on ref. It must be called
// before any network call for the candidate.
func (f *Frontier) MarkProcessing(ctx context.Context, ref model.CandidateRef) error {
	if ref.IsSeed() {
		return f.store.TransitionSeed(ctx, ref.ID, model.StatusProcessing)
	}
	return f.store.TransitionDiscovered(ctx, ref.ID, model.StatusProcessing, nil)
}

// MarkChecked records that processing of ref finished.
func (f *Frontier) MarkChecked(ctx context.Context, ref model.CandidateRef) error {
	if ref.IsSeed() {
		return f.store.TransitionSeed(ctx, ref.ID, model.StatusChecked)
	}
	return f.store.TransitionDiscovered(ctx, ref.ID, model.StatusChecked, nil)
}

// MarkPass records a passed evaluation. Seeds have no pass state and
// become checked.
func (f *Frontier) MarkPass(ctx context.Context, ref model.CandidateRef, out Outcome) error {
	return f.finish(ctx, ref, model.StatusPass, out)
}

// MarkFail records a failed evaluation or fetch. Seeds have no fail state
// and become checked.
func (f *Frontier) MarkFail(ctx context.Context, ref model.CandidateRef, out Outcome) error {
	return f.finish(ctx, ref, model.StatusFail, out)
}

func (f *Frontier) finish(ctx context.Context, ref model.CandidateRef, to model.Status, out Outcome) error {
	if ref.IsSeed() {
		return f.store.TransitionSeed(ctx, ref.ID, model.StatusChecked)
	}
	return f.store.TransitionDiscovered(ctx, ref.ID, to, &database.DiscoveredResult{
		Metrics:   out.Metrics,
		Rationale: out.Rationale,
	})
}

// EnqueueFollowing adds handles followed by parent as discovered at level.
// Nothing is enqueued when level exceeds maxLevel. Handles that are invalid,
// equal to parent, repeated, or already known in any kind are skipped.
// It returns the number of handles added.
func (f *Frontier) EnqueueFollowing(ctx context.Context, parent string, handles []string, level, maxLevel int) (int, error) {
	if level > maxLevel || level < 1 || len(handles) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(handles))
	added := 0
	for _, raw := range handles {
		h, err := model.NormalizeHandle(raw)
		if err != nil || h == parent {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		exists, err := f.store.ExistsAnywhere(ctx, h)
		if err != nil {
			return added, fmt.Errorf("failed to check handle %s: %w", h, err)
		}
		if exists {
			continue
		}

		if _, err := f.store.InsertDiscovered(ctx, h, parent, level); err != nil {
			if errors.Is(err, database.ErrDuplicateHandle) {
				f.logger.Debug("lost discovery race", "handle", h, "parent", parent)
				continue
			}
			return added, fmt.Errorf("failed to enqueue %s: %w", h, err)
		}
		added++
	}
	return added, nil
}

// ExistsAnywhere reports whether handle is known as seed, discovered or accepted.
func (f *Frontier) ExistsAnywhere(ctx context.Context, handle string) (bool, error) {
	h, err := model.NormalizeHandle(handle)
	if err != nil {
		return false, err
	}
	return f.store.ExistsAnywhere(ctx, h)
}

// Accept stores an accepted candidate. Calling it again for the same
// handle is a no-op that returns false.
func (f *Frontier) Accept(ctx context.Context, c *model.AcceptedCandidate) (bool, error) {
	inserted, err := f.store.InsertAccepted(ctx, c)
	if err != nil {
		return false, fmt.Errorf("failed to store accepted candidate %s: %w", c.Handle, err)
	}
	if !inserted {
		f.logger.Debug("candidate already accepted", "handle", c.Handle)
	}
	return inserted, nil
}
