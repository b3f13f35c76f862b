// Package admin is the operator surface of scoutgraph: statistics, runtime
// settings, seeds, identities and the accepted-candidate export. The CLI is
// a thin layer over Service.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/database"
	"github.com/nao1215/scoutgraph/internal/model"
)

// Store is the persistence the service administers. database.DB implements it.
type Store interface {
	Stats(ctx context.Context) (model.Stats, error)
	RunConfigValues(ctx context.Context) (map[string]string, error)
	LoadRunConfig(ctx context.Context) (config.RunConfig, error)
	SetRunConfigValue(ctx context.Context, key, value string) error
	AddSeed(ctx context.Context, handle string) (model.SeedHandle, error)
	ListSeeds(ctx context.Context, status model.Status) ([]model.SeedHandle, error)
	AddIdentity(ctx context.Context, id model.Identity) (model.Identity, error)
	ListIdentities(ctx context.Context, statuses ...model.IdentityStatus) ([]model.Identity, error)
	SetIdentityStatus(ctx context.Context, handle string, status model.IdentityStatus) error
	ListAccepted(ctx context.Context) ([]model.AcceptedCandidate, error)
	RecentAccepted(ctx context.Context, n int) ([]model.AcceptedCandidate, error)
	AnnotateAccepted(ctx context.Context, handle, notes string) error
	RequeueProcessing(ctx context.Context) (int64, error)
	LogActivity(ctx context.Context, e model.ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error)
}

// Sealer encrypts credentials before they are stored. secret.Sealer
// implements it.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Service implements the administrative operations.
type Service struct {
	store  Store
	sealer Sealer
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSealer sets the sealer used by AddIdentity.
func WithSealer(s Sealer) Option {
	return func(svc *Service) {
		svc.sealer = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview is the result of GetStats.
type Overview struct {
	Stats  model.Stats      `json:"stats"`
	Config config.RunConfig `json:"config"`
}

// GetStats returns frontier counters together with the runtime settings.
func (s *Service) GetStats(ctx context.Context) (Overview, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Overview{}, err
	}
	rc, err := s.store.LoadRunConfig(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Stats: stats, Config: rc}, nil
}

// ViewConfig returns every runtime setting as stored.
func (s *Service) ViewConfig(ctx context.Context) (map[string]string, error) {
	values, err := s.store.RunConfigValues(ctx)
	if err != nil {
		return nil, err
	}
	out := config.DefaultRunValues()
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

// SetConfig validates and stores one runtime setting.
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	if err := s.store.SetRunConfigValue(ctx, key, value); err != nil {
		return err
	}
	s.logger.Info("runtime setting changed", "key", key, "value", value)
	s.record(ctx, model.ActionConfigChanged, "", map[string]string{key: value})
	return nil
}

// SetConcurrencyLimit sets the number of concurrent workers per batch.
func (s *Service) SetConcurrencyLimit(ctx context.Context, n int) error {
	return s.SetConfig(ctx, config.KeyConcurrentLimit, strconv.Itoa(n))
}

// SetMaxLevel sets the deepest level that is evaluated and expanded.
func (s *Service) SetMaxLevel(ctx context.Context, n int) error {
	return s.SetConfig(ctx, config.KeyMaxLevel, strconv.Itoa(n))
}

// Criteria are the acceptance minimums changed together by SetCriteria.
// Nil fields are left unchanged.
type Criteria struct {
	MinFollowers      *int64
	MinAvgViews       *int64
	MinEngagementRate *float64
}

// SetCriteria updates the acceptance thresholds. All values are validated
// before any is stored.
func (s *Service) SetCriteria(ctx context.Context, c Criteria) error {
	updates := make(map[string]string, 3)
	if c.MinFollowers != nil {
		updates[config.KeyMinFollowers] = strconv.FormatInt(*c.MinFollowers, 10)
	}
	if c.MinAvgViews != nil {
		updates[config.KeyMinAvgViews] = strconv.FormatInt(*c.MinAvgViews, 10)
	}
	if c.MinEngagementRate != nil {
		updates[config.KeyMinEngagementRate] = strconv.FormatFloat(*c.MinEngagementRate, 'f', -1, 64)
	}
	for k, v := range updates {
		if _, err := config.NormalizeRunValue(k, v); err != nil {
			return err
		}
	}
	for _, k := range []string{config.KeyMinFollowers, config.KeyMinAvgViews, config.KeyMinEngagementRate} {
		v, ok := updates[k]
		if !ok {
			continue
		}
		if err := s.SetConfig(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Pause stops dispatch of new batches at the next iteration of any
// running crawl.
func (s *Service) Pause(ctx context.Context) error {
	return s.SetConfig(ctx, config.KeyScriptStatus, config.ScriptPaused)
}

// Resume undoes Pause.
func (s *Service) Resume(ctx context.Context) error {
	return s.SetConfig(ctx, config.KeyScriptStatus, config.ScriptActive)
}

// AddSeed normalizes handle and stores it as a seed.
// A handle known in any kind yields database.ErrDuplicateHandle.
func (s *Service) AddSeed(ctx context.Context, handle string) (model.SeedHandle, error) {
	h, err := model.NormalizeHandle(handle)
	if err != nil {
		return model.SeedHandle{}, err
	}
	seed, err := s.store.AddSeed(ctx, h)
	if err != nil {
		return model.SeedHandle{}, err
	}
	s.record(ctx, model.ActionSeedAdded, h, nil)
	return seed, nil
}

// SeedImport summarizes a bulk seed import.
type SeedImport struct {
	Added      []string `json:"added"`
	Duplicates []string `json:"duplicates,omitempty"`
	Invalid    []string `json:"invalid,omitempty"`
}

// AddSeeds adds many seeds. Invalid and already known handles are
// reported, not treated as errors; a storage failure aborts the import.
func (s *Service) AddSeeds(ctx context.Context, handles []string) (SeedImport, error) {
	var out SeedImport
	for _, raw := range handles {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		seed, err := s.AddSeed(ctx, raw)
		switch {
		case err == nil:
			out.Added = append(out.Added, seed.Handle)
		case errors.Is(err, model.ErrInvalidHandle):
			out.Invalid = append(out.Invalid, raw)
		case errors.Is(err, database.ErrDuplicateHandle):
			out.Duplicates = append(out.Duplicates, raw)
		default:
			return out, fmt.Errorf("failed to add seed %q: %w", raw, err)
		}
	}
	return out, nil
}

// ListSeeds returns seeds, optionally filtered by status.
func (s *Service) ListSeeds(ctx context.Context, status model.Status) ([]model.SeedHandle, error) {
	return s.store.ListSeeds(ctx, status)
}

// NewIdentity describes an identity to add.
type NewIdentity struct {
	Handle   string
	Password string
	ProxyURL string
	Backup   bool
}

// AddIdentity seals the credential and stores the identity.
func (s *Service) AddIdentity(ctx context.Context, in NewIdentity) (model.Identity, error) {
	if s.sealer == nil {
		return model.Identity{}, ErrNoSealer
	}
	h, err := model.NormalizeHandle(in.Handle)
	if err != nil {
		return model.Identity{}, err
	}
	if in.Password == "" {
		return model.Identity{}, ErrEmptyCredential
	}
	sealed, err := s.sealer.Seal(in.Password)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to seal credential: %w", err)
	}
	status := model.IdentityActive
	if in.Backup {
		status = model.IdentityBackup
	}
	id, err := s.store.AddIdentity(ctx, model.Identity{
		Handle:        h,
		CredentialRef: sealed,
		Status:        status,
		ProxyURL:      in.ProxyURL,
	})
	if err != nil {
		return model.Identity{}, err
	}
	s.record(ctx, model.ActionIdentityAdded, h, map[string]string{"status": string(status)})
	return id, nil
}

// ListIdentities returns identities, optionally filtered by status.
func (s *Service) ListIdentities(ctx context.Context, statuses ...model.IdentityStatus) ([]model.Identity, error) {
	return s.store.ListIdentities(ctx, statuses...)
}

// SetIdentityStatus changes the status of an identity, for example to
// reactivate one the pool demoted.
func (s *Service) SetIdentityStatus(ctx context.Context, handle string, status model.IdentityStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("unknown identity status %q", status)
	}
	return s.store.SetIdentityStatus(ctx, handle, status)
}

// RecentAccepted returns the n newest accepted candidates.
func (s *Service) RecentAccepted(ctx context.Context, n int) ([]model.AcceptedCandidate, error) {
	return s.store.RecentAccepted(ctx, n)
}

// AnnotateAccepted replaces the operator notes of an accepted candidate.
func (s *Service) AnnotateAccepted(ctx context.Context, handle, notes string) error {
	h, err := model.NormalizeHandle(handle)
	if err != nil {
		return err
	}
	return s.store.AnnotateAccepted(ctx, h, notes)
}

// RequeueStuck moves rows left in processing back to pending and returns
// how many were moved. It must not run while a crawl is active.
func (s *Service) RequeueStuck(ctx context.Context) (int64, error) {
	n, err := s.store.RequeueProcessing(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("requeued stuck candidates", "count", n)
	s.record(ctx, model.ActionRequeued, "", map[string]int64{"count": n})
	return n, nil
}

// RecentActivity returns the newest activity log entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	return s.store.RecentActivity(ctx, limit)
}

func (s *Service) record(ctx context.Context, action, handle string, details any) {
	entry := model.ActivityEntry{Action: action, Handle: handle}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	if err := s.store.LogActivity(ctx, entry); err != nil {
		s.logger.Warn("failed to write activity log", "action", action, "error", err)
	}
}
