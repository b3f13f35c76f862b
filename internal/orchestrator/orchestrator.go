// Package orchestrator runs the crawl loop.
//
// Each iteration reloads the runtime configuration, takes a batch from the
// frontier, evaluates it with a bounded number of workers and records the
// result in the activity log. Empty batches and a paused configuration put
// the loop to sleep for the idle interval. Failed iterations back off
// linearly and stop the loop after MaxConsecutiveErrors in a row.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/pipeline"
	"github.com/nao1215/scoutgraph/internal/pool"
	"github.com/nao1215/scoutgraph/internal/remote"
)

// RunConfigSource supplies the runtime configuration snapshot.
// database.DB implements it.
type RunConfigSource interface {
	LoadRunConfig(ctx context.Context) (config.RunConfig, error)
}

// BatchSource hands out frontier batches. frontier.Frontier implements it.
type BatchSource interface {
	NextBatch(ctx context.Context, limit, maxLevel int) ([]model.CandidateRef, error)
}

// BatchRunner evaluates a batch. pipeline.BatchProcessor implements it.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, refs []model.CandidateRef, rc config.RunConfig) ([]*pipeline.Evaluation, error)
}

// ActivityLog records loop events. database.DB implements it.
type ActivityLog interface {
	LogActivity(ctx context.Context, e model.ActivityEntry) error
}

// BatchResult aggregates the evaluations of one batch.
type BatchResult struct {
	Size            int  `json:"size"`
	Passed          int  `json:"passed"`
	Failed          int  `json:"failed"`
	Errors          int  `json:"errors"`
	Accepted        int  `json:"accepted"`
	FollowingsAdded int  `json:"followings_added"`
	Paused          bool `json:"paused,omitempty"`
}

// IsIdle reports whether the iteration found nothing to do.
func (r BatchResult) IsIdle() bool {
	return r.Size == 0
}

func (r *BatchResult) add(o BatchResult) {
	r.Size += o.Size
	r.Passed += o.Passed
	r.Failed += o.Failed
	r.Errors += o.Errors
	r.Accepted += o.Accepted
	r.FollowingsAdded += o.FollowingsAdded
}

// Orchestrator drives the crawl loop.
type Orchestrator struct {
	runConfig RunConfigSource
	batches   BatchSource
	runner    BatchRunner
	activity  ActivityLog

	idleInterval         time.Duration
	interBatchDelay      time.Duration
	errorBackoff         time.Duration
	maxConsecutiveErrors int
	stopWhenIdle         bool
	sleep                func(ctx context.Context, d time.Duration) error
	logger               *slog.Logger

	runID  string
	state  atomic.Int32
	paused atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}

	mu     sync.Mutex
	totals BatchResult
	last   BatchResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIdleInterval sets the sleep after an empty batch or while paused.
func WithIdleInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.idleInterval = d
		}
	}
}

// WithInterBatchDelay sets the courtesy sleep between batches.
func WithInterBatchDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.interBatchDelay = d
		}
	}
}

// WithErrorBackoff sets the backoff unit after a failed iteration.
func WithErrorBackoff(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.errorBackoff = d
		}
	}
}

// WithMaxConsecutiveErrors sets how many failed iterations in a row stop
// the loop.
func WithMaxConsecutiveErrors(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConsecutiveErrors = n
		}
	}
}

// WithStopWhenIdle makes Run return once the frontier is empty instead of
// polling for new work.
func WithStopWhenIdle(stop bool) Option {
	return func(o *Orchestrator) {
		o.stopWhenIdle = stop
	}
}

// WithActivityLog sets where loop events are recorded.
func WithActivityLog(log ActivityLog) Option {
	return func(o *Orchestrator) {
		o.activity = log
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}

// WithSleeper replaces the context-aware sleep used between iterations.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator.
func New(runConfig RunConfigSource, batches BatchSource, runner BatchRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runConfig:            runConfig,
		batches:              batches,
		runner:               runner,
		idleInterval:         config.DefaultIdleInterval,
		interBatchDelay:      config.DefaultInterBatchDelay,
		errorBackoff:         config.DefaultErrorBackoff,
		maxConsecutiveErrors: config.DefaultMaxConsecutiveErrors,
		sleep:                remote.Sleep,
		logger:               slog.Default(),
		runID:                uuid.NewString(),
		stopCh:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID returns the identifier written with every activity entry.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Pause suspends batch dispatch until Resume. A batch already running
// finishes normally.
func (o *Orchestrator) Pause() {
	if !o.paused.Swap(true) {
		o.logger.Info("processing paused")
	}
}

// Resume undoes Pause.
func (o *Orchestrator) Resume() {
	if o.paused.Swap(false) {
		o.logger.Info("processing resumed")
	}
}

// Paused reports whether Pause is in effect.
func (o *Orchestrator) Paused() bool {
	return o.paused.Load()
}

// Stop asks the loop to finish. In-flight workers complete their current
// candidate; no new batch is started. Stop is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if !o.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
			o.state.CompareAndSwap(int32(StateIdle), int32(StateStopped))
		}
		close(o.stopCh)
		o.logger.Info("stopping processing loop")
	})
}

// Totals returns the aggregate of every batch processed by this run.
func (o *Orchestrator) Totals() BatchResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totals
}

// LastBatch returns the result of the most recent batch.
func (o *Orchestrator) LastBatch() BatchResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Run executes the loop until Stop, ctx cancellation or too many failed
// iterations. It returns nil after a Stop or an idle exit.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	defer o.state.Store(int32(StateStopped))

	// Sleeps end early on Stop; workers only observe ctx.
	sleepCtx, cancelSleep := context.WithCancel(ctx)
	defer cancelSleep()
	go func() {
		select {
		case <-o.stopCh:
			cancelSleep()
		case <-sleepCtx.Done():
		}
	}()

	o.logger.Info("starting processing loop", "run_id", o.runID)
	o.record(ctx, model.ActionProcessingStarted, "", nil)

	err := o.loop(ctx, sleepCtx)

	details := map[string]any{"totals": o.Totals()}
	if err != nil {
		details["error"] = err.Error()
	}
	o.record(context.WithoutCancel(ctx), model.ActionProcessingStopped, "", details)
	o.logger.Info("processing loop stopped", "run_id", o.runID, "error", err)
	return err
}

func (o *Orchestrator) loop(ctx, sleepCtx context.Context) error {
	consecutiveErrors := 0
	for {
		if o.stopping() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := o.RunOnce(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			consecutiveErrors++
			o.logger.Error("iteration failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)
			o.record(ctx, model.ActionProcessingError, "", map[string]any{
				"error":              err.Error(),
				"consecutive_errors": consecutiveErrors,
			})
			if consecutiveErrors >= o.maxConsecutiveErrors {
				return fmt.Errorf("%w: %w", ErrTooManyErrors, err)
			}
			o.wait(sleepCtx, o.errorBackoff*time.Duration(consecutiveErrors))
			continue
		}
		consecutiveErrors = 0

		switch {
		case res.Paused:
			o.logger.Debug("paused, waiting", "interval", o.idleInterval)
			o.wait(sleepCtx, o.idleInterval)
		case res.IsIdle():
			if o.stopWhenIdle {
				o.logger.Info("frontier is empty, exiting")
				return nil
			}
			o.logger.Info("no pending candidates, waiting", "interval", o.idleInterval)
			o.wait(sleepCtx, o.idleInterval)
		default:
			o.wait(sleepCtx, o.interBatchDelay)
		}
	}
}

// RunOnce performs a single iteration: reload the configuration, take a
// batch and evaluate it. An empty or paused iteration returns a zero-size
// result. Per-candidate failures are counted in the result; the error is
// reserved for failures of the iteration itself.
func (o *Orchestrator) RunOnce(ctx context.Context) (BatchResult, error) {
	rc, err := o.runConfig.LoadRunConfig(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load run config: %w", err)
	}
	if rc.Paused || o.paused.Load() {
		return BatchResult{Paused: true}, nil
	}

	refs, err := o.batches.NextBatch(ctx, rc.ConcurrentLimit, rc.MaxLevel)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to select batch: %w", err)
	}
	if len(refs) == 0 {
		return BatchResult{}, nil
	}

	o.logger.Info("processing batch", "size", len(refs), "concurrency", rc.ConcurrentLimit)
	evs, err := o.runner.ProcessBatch(ctx, refs, rc)
	if err != nil {
		return BatchResult{}, err
	}

	res, exhausted := o.summarize(ctx, evs)
	res.Size = len(refs)

	o.mu.Lock()
	o.last = res
	o.totals.add(res)
	o.mu.Unlock()

	o.logger.Info("batch complete",
		"passed", res.Passed,
		"failed", res.Failed,
		"errors", res.Errors,
		"followings_added", res.FollowingsAdded,
	)
	o.record(ctx, model.ActionBatchComplete, "", res)

	if exhausted {
		return res, fmt.Errorf("%w: %w", ErrPoolUnavailable, pool.ErrPoolExhausted)
	}
	return res, nil
}

// summarize counts evaluations and writes per-candidate activity entries.
// It reports whether every identity was exhausted while serving the batch.
func (o *Orchestrator) summarize(ctx context.Context, evs []*pipeline.Evaluation) (BatchResult, bool) {
	var (
		res       BatchResult
		exhausted bool
	)
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		res.FollowingsAdded += ev.FollowingsAdded
		if ev.Accepted {
			res.Accepted++
		}

		switch {
		case ev.Err != nil:
			res.Errors++
			if errors.Is(ev.Err, pool.ErrPoolExhausted) {
				exhausted = true
			}
			o.record(ctx, model.ActionProcessingError, ev.Ref.Handle, map[string]any{
				"error": ev.Err.Error(),
				"level": ev.Ref.Level,
			})
		case ev.Passed:
			res.Passed++
			var summary any
			if ev.Rationale != nil {
				summary = ev.Rationale.Summary
			}
			o.record(ctx, model.ActionAccountPassed, ev.Ref.Handle, summary)
		default:
			res.Failed++
			var reasons []string
			if ev.Rationale != nil {
				reasons = ev.Rationale.FailReasons
			}
			o.record(ctx, model.ActionAccountFailed, ev.Ref.Handle, map[string]any{
				"reasons": reasons,
			})
		}
	}
	return res, exhausted
}

func (o *Orchestrator) stopping() bool {
	select {
	case <-o.stopCh:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	_ = o.sleep(ctx, d) //nolint:errcheck // cancellation is checked by the loop
}

func (o *Orchestrator) record(ctx context.Context, action, handle string, details any) {
	if o.activity == nil {
		return
	}
	entry := model.ActivityEntry{
		Action: action,
		Handle: handle,
		RunID:  o.runID,
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			entry.Details = string(b)
		}
	}
	if err := o.activity.LogActivity(ctx, entry); err != nil {
		o.logger.Warn("failed to write activity log", "action", action, "error", err)
	}
}
