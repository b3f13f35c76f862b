package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/scoutgraph/internal/contact"
	"github.com/nao1215/scoutgraph/internal/criteria"
	"github.com/nao1215/scoutgraph/internal/model"
)

// Step names.
const (
	StepFetch    = "fetch"
	StepCriteria = "criteria"
	StepContacts = "contacts"
	StepAccept   = "accept"
	StepExpand   = "expand"
)

// Fetcher retrieves everything needed to evaluate a handle.
// remote.Client implements it.
type Fetcher interface {
	FetchComplete(ctx context.Context, handle string, n, limit int) (model.CompleteData, error)
}

// FetchStep loads the profile, recent activity and follow list.
type FetchStep struct {
	fetcher Fetcher
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(fetcher Fetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return StepFetch
}

// Do fetches the data for ev.Ref.Handle.
func (s *FetchStep) Do(ctx context.Context, ev *Evaluation) error {
	data, err := s.fetcher.FetchComplete(ctx, ev.Ref.Handle,
		ev.Config.ActivitySampleSize, ev.Config.FollowingFetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", ev.Ref.Handle, err)
	}
	ev.Data = data
	ev.Fetched = true
	return nil
}

// CriteriaStep applies the acceptance gates of the iteration's snapshot.
type CriteriaStep struct{}

// NewCriteriaStep creates a CriteriaStep.
func NewCriteriaStep() *CriteriaStep {
	return &CriteriaStep{}
}

// Name returns the step name.
func (s *CriteriaStep) Name() string {
	return StepCriteria
}

// Do evaluates the fetched data.
func (s *CriteriaStep) Do(_ context.Context, ev *Evaluation) error {
	if !ev.Fetched {
		return ErrNotFetched
	}
	eval := criteria.NewEvaluator(criteria.FromRunConfig(ev.Config))
	passed, rationale := eval.Evaluate(ev.Ref.Handle, ev.Data.Profile.Metrics(), ev.Data.Activity)
	ev.Passed = passed
	ev.Rationale = &rationale
	return nil
}

// PageExpander returns extra text gathered from a profile's external link.
// linkpage.Fetcher implements it.
type PageExpander interface {
	ExtraText(ctx context.Context, link string) []string
}

// ContactStep extracts contact information from passed candidates.
type ContactStep struct {
	extractor *contact.Extractor
	pages     PageExpander
	logger    *slog.Logger
}

// ContactStepOption configures a ContactStep.
type ContactStepOption func(*ContactStep)

// WithPageExpander follows link-in-bio pages for extra contact text.
func WithPageExpander(pages PageExpander) ContactStepOption {
	return func(s *ContactStep) {
		s.pages = pages
	}
}

// WithContactLogger sets a custom logger for the contact step.
func WithContactLogger(logger *slog.Logger) ContactStepOption {
	return func(s *ContactStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewContactStep creates a ContactStep.
func NewContactStep(extractor *contact.Extractor, opts ...ContactStepOption) *ContactStep {
	s := &ContactStep{
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ContactStep) Name() string {
	return StepContacts
}

// Do fills ev.Contacts. Failed candidates are skipped.
func (s *ContactStep) Do(ctx context.Context, ev *Evaluation) error {
	if !ev.Passed {
		return nil
	}
	p := ev.Data.Profile

	var extra []string
	if p.PublicEmail != "" {
		extra = append(extra, p.PublicEmail)
	}
	if p.PublicPhone != "" {
		extra = append(extra, p.PublicPhone)
	}
	if s.pages != nil && strings.TrimSpace(p.ExternalLink) != "" {
		lines := s.pages.ExtraText(ctx, p.ExternalLink)
		if len(lines) > 0 {
			s.logger.Debug("expanded link page", "handle", ev.Ref.Handle, "lines", len(lines))
		}
		extra = append(extra, lines...)
	}

	ev.Contacts = s.extractor.Extract(contact.Input{
		Bio:          p.Bio,
		ExternalLink: p.ExternalLink,
		DisplayName:  p.DisplayName,
		Category:     p.Category,
		ExtraText:    extra,
	})
	return nil
}

// Acceptor stores accepted candidates. frontier.Frontier implements it.
type Acceptor interface {
	Accept(ctx context.Context, c *model.AcceptedCandidate) (bool, error)
}

// AcceptStep persists passed candidates.
type AcceptStep struct {
	store Acceptor
}

// NewAcceptStep creates an AcceptStep.
func NewAcceptStep(store Acceptor) *AcceptStep {
	return &AcceptStep{store: store}
}

// Name returns the step name.
func (s *AcceptStep) Name() string {
	return StepAccept
}

// Do stores the candidate when it passed. Storing an already accepted
// handle again is not an error.
func (s *AcceptStep) Do(ctx context.Context, ev *Evaluation) error {
	if !ev.Passed {
		return nil
	}
	inserted, err := s.store.Accept(ctx, AcceptedCandidate(ev))
	if err != nil {
		return err
	}
	ev.Accepted = inserted
	return nil
}

// AcceptedCandidate builds the stored record for a passed evaluation.
func AcceptedCandidate(ev *Evaluation) *model.AcceptedCandidate {
	p := ev.Data.Profile
	c := &model.AcceptedCandidate{
		Handle:      ev.Ref.Handle,
		DisplayName: p.DisplayName,
		Contacts:    ev.Contacts,
		Metrics: model.AcceptedMetrics{
			Followers: p.Followers,
			Following: p.Following,
			Posts:     p.Posts,
		},
		Level:    ev.Ref.Level,
		Bio:      p.Bio,
		Verified: p.Verified,
		Business: p.Business,
	}
	if ev.Rationale != nil {
		c.Metrics.AvgRecentViews = ev.Rationale.Summary.AvgViews
		c.Metrics.EngagementRatePct = ev.Rationale.Summary.EngagementRatePct
	}
	return c
}

// Enqueuer adds discovered handles to the frontier.
// frontier.Frontier implements it.
type Enqueuer interface {
	EnqueueFollowing(ctx context.Context, parent string, handles []string, level, maxLevel int) (int, error)
}

// ExpandStep enqueues the follow list one level deeper.
type ExpandStep struct {
	store Enqueuer
}

// NewExpandStep creates an ExpandStep.
func NewExpandStep(store Enqueuer) *ExpandStep {
	return &ExpandStep{store: store}
}

// Name returns the step name.
func (s *ExpandStep) Name() string {
	return StepExpand
}

// Do enqueues followings at level+1 while the level is below the maximum.
// Followings of failed candidates are enqueued too.
func (s *ExpandStep) Do(ctx context.Context, ev *Evaluation) error {
	if ev.Ref.Level >= ev.Config.MaxLevel || len(ev.Data.Following) == 0 {
		return nil
	}
	added, err := s.store.EnqueueFollowing(ctx, ev.Ref.Handle, ev.Data.Following,
		ev.Ref.Level+1, ev.Config.MaxLevel)
	ev.FollowingsAdded += added
	if err != nil {
		return fmt.Errorf("failed to enqueue followings of %s: %w", ev.Ref.Handle, err)
	}
	return nil
}

// CandidateStore accepts candidates and enqueues their followings.
// frontier.Frontier implements it.
type CandidateStore interface {
	Acceptor
	Enqueuer
}

// CandidateSteps returns the standard step order.
func CandidateSteps(fetcher Fetcher, extractor *contact.Extractor, store CandidateStore, opts ...ContactStepOption) []Step {
	return []Step{
		NewFetchStep(fetcher),
		NewCriteriaStep(),
		NewContactStep(extractor, opts...),
		NewAcceptStep(store),
		NewExpandStep(store),
	}
}

// NewCandidatePipeline builds a pipeline of CandidateSteps that keeps
// running after a failed step. A failed accept write still enqueues the
// candidate's followings; the first error stays in the evaluation.
func NewCandidatePipeline(fetcher Fetcher, extractor *contact.Extractor, store CandidateStore, logger *slog.Logger, opts ...ContactStepOption) *Pipeline {
	p := New(WithLogger(logger), WithContinueOnError(true))
	p.AddSteps(CandidateSteps(fetcher, extractor, store, opts...)...)
	return p
}
