package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/frontier"
	"github.com/nao1215/scoutgraph/internal/model"
	"golang.org/x/sync/errgroup"
)

// Tracker records frontier status transitions. frontier.Frontier implements it.
type Tracker interface {
	MarkProcessing(ctx context.Context, ref model.CandidateRef) error
	MarkPass(ctx context.Context, ref model.CandidateRef, out frontier.Outcome) error
	MarkFail(ctx context.Context, ref model.CandidateRef, out frontier.Outcome) error
}

// BatchProcessor evaluates a batch of candidates concurrently.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each candidate.
	pipelineFactory func() *Pipeline
	tracker         Tracker
	concurrency     int
	now             func() time.Time
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the default number of concurrent workers, used when
// a batch does not carry its own limit.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithClock replaces the time source for error rationales.
func WithClock(now func() time.Time) BatchOption {
	return func(b *BatchProcessor) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, tracker Tracker, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		tracker:         tracker,
		concurrency:     config.DefaultConcurrentLimit,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch evaluates refs with at most rc.ConcurrentLimit workers and
// returns one Evaluation per ref in input order. Worker failures are
// recorded in the evaluations and never abort the other workers.
// The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, refs []model.CandidateRef, rc config.RunConfig) ([]*Evaluation, error) {
	limit := rc.ConcurrentLimit
	if limit <= 0 {
		limit = bp.concurrency
	}
	bp.logger.Info("starting batch",
		"size", len(refs),
		"concurrency", limit,
	)
	startTime := time.Now()

	results := make([]*Evaluation, len(refs))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, ref := range refs {
		g.Go(func() error {
			ev := bp.process(ctx, ref, rc)
			mu.Lock()
			results[i] = ev
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch complete",
		"size", len(refs),
		"elapsed", time.Since(startTime),
	)
	return results, ctx.Err()
}

// process runs one candidate: mark processing, run the pipeline, then
// write the final status.
func (bp *BatchProcessor) process(ctx context.Context, ref model.CandidateRef, rc config.RunConfig) *Evaluation {
	ev := NewEvaluation(ref, rc)

	if err := ctx.Err(); err != nil {
		ev.Err = err
		return ev
	}
	if err := bp.tracker.MarkProcessing(ctx, ref); err != nil {
		bp.logger.Warn("failed to claim candidate", "handle", ref.Handle, "error", err)
		ev.Err = err
		return ev
	}

	bp.logger.Info("processing candidate",
		"handle", ref.Handle,
		"level", ref.Level,
		"kind", ref.Kind,
	)
	_ = bp.pipelineFactory().Execute(ctx, ev) //nolint:errcheck // error is stored in ev

	if ctx.Err() != nil {
		// The row stays in processing until an operator requeues it.
		bp.logger.Warn("candidate interrupted", "handle", ref.Handle)
		return ev
	}

	if err := bp.finish(ctx, ev); err != nil {
		bp.logger.Error("failed to record final status", "handle", ref.Handle, "error", err)
		ev.Err = errors.Join(ev.Err, err)
	}
	return ev
}

func (bp *BatchProcessor) finish(ctx context.Context, ev *Evaluation) error {
	out := frontier.Outcome{Rationale: ev.Rationale}
	if ev.Fetched {
		m := ev.Data.Profile.Metrics()
		out.Metrics = &m
	}

	switch {
	case ev.Err != nil:
		out.Rationale = bp.errorRationale(ev)
		return bp.tracker.MarkFail(ctx, ev.Ref, out)
	case ev.Passed:
		return bp.tracker.MarkPass(ctx, ev.Ref, out)
	default:
		return bp.tracker.MarkFail(ctx, ev.Ref, out)
	}
}

// errorRationale records ev.Err on top of any criteria rationale, so a
// candidate that passed the gates but could not be stored ends as an error.
func (bp *BatchProcessor) errorRationale(ev *Evaluation) *model.Rationale {
	if ev.Rationale == nil {
		return model.ErrorRationale(ev.Ref.Handle, ev.Err, bp.now().UTC())
	}
	r := *ev.Rationale
	r.Error = ev.Err.Error()
	r.FailReasons = append(slices.Clone(r.FailReasons), r.Error)
	return &r
}
