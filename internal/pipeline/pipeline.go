package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
)

// Evaluation accumulates the result of processing one candidate.
type Evaluation struct {
	// Ref is the frontier row being processed.
	Ref model.CandidateRef
	// Config is the runtime configuration snapshot of the current iteration.
	Config config.RunConfig

	// Data is the fetched profile, activity and follow list.
	Data model.CompleteData
	// Fetched is true once Data holds a profile.
	Fetched bool

	// Passed reports whether every acceptance gate passed.
	Passed bool
	// Rationale explains the criteria decision.
	Rationale *model.Rationale

	// Contacts is filled for passed candidates only.
	Contacts model.ContactRecord
	// Accepted is true when this evaluation stored a new accepted record.
	Accepted bool
	// FollowingsAdded counts handles enqueued at the next level.
	FollowingsAdded int

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string
	// Err is the first step error, if any.
	Err error
}

// NewEvaluation creates an empty Evaluation for ref.
func NewEvaluation(ref model.CandidateRef, rc config.RunConfig) *Evaluation {
	return &Evaluation{
		Ref:            ref,
		Config:         rc,
		PerformedSteps: make([]string, 0),
	}
}

// Outcome reports how the evaluation ended: "pass", "fail" or "error".
func (e *Evaluation) Outcome() string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Passed:
		return "pass"
	default:
		return "fail"
	}
}

// Step is one stage of candidate processing.
type Step interface {
	// Do runs the step. A returned error stops the pipeline unless it
	// was built with WithContinueOnError.
	Do(ctx context.Context, ev *Evaluation) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing later steps after a step fails.
// The first error is still recorded in the evaluation.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against ev and returns the first error.
// Cancellation is checked between steps; a step that is already running
// is expected to honor ctx itself.
func (p *Pipeline) Execute(ctx context.Context, ev *Evaluation) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"handle", ev.Ref.Handle,
				"reason", err,
			)
			if ev.Err == nil {
				ev.Err = err
			}
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"handle", ev.Ref.Handle,
		)

		if err := step.Do(ctx, ev); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"handle", ev.Ref.Handle,
				"error", err,
			)
			if ev.Err == nil {
				ev.Err = err
			}
			if !p.continueOnError {
				return err
			}
		}

		ev.PerformedSteps = append(ev.PerformedSteps, step.Name())
	}
	return ev.Err
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
