package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/contact"
	"github.com/nao1215/scoutgraph/internal/frontier"
	"github.com/nao1215/scoutgraph/internal/linkpage"
	"github.com/nao1215/scoutgraph/internal/orchestrator"
	"github.com/nao1215/scoutgraph/internal/pipeline"
	"github.com/nao1215/scoutgraph/internal/remote"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the crawler until stopped",
		Long: `Run processes the frontier in batches until it is interrupted.

Each batch claims up to concurrent_limit pending handles (seeds first),
fetches their profile, recent activity and follow list, evaluates the
acceptance criteria, stores accepted candidates and enqueues the handles
they follow one level deeper, up to max_level.

When the frontier is empty or the crawler is paused it polls again after
the idle interval. The first interrupt lets in-flight handles finish; a
second interrupt aborts them. Aborted handles stay in processing until
"scoutgraph requeue" is run.

Examples:
  # Crawl forever against the configured HTTP source
  scoutgraph run

  # Crawl until nothing is left, using an offline graph
  scoutgraph run --once --fixture graph.yaml`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().Bool("once", false, "Exit when the frontier is empty instead of polling")
	addFixtureFlag(cmd)

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b, err := a.openBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Error("failed to shut down source", "error", err)
		}
	}()

	orch, err := a.newOrchestrator(ctx, b, once)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		a.logger.Info("received shutdown signal, finishing in-flight handles (interrupt again to abort)")
		orch.Stop()
		select {
		case <-sigCh:
			a.logger.Warn("aborting in-flight handles")
			cancel()
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Crawler started (run %s)\n", orch.RunID())

	runErr := orch.Run(ctx)
	t := orch.Totals()
	fmt.Fprintf(out, "Crawler stopped: %d processed, %d passed, %d failed, %d errors, %d accepted, %d followings added\n",
		t.Size, t.Passed, t.Failed, t.Errors, t.Accepted, t.FollowingsAdded)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// newOrchestrator wires pool, remote client, frontier and the candidate
// pipeline into an orchestrator.
func (a *app) newOrchestrator(ctx context.Context, b *backend, once bool) (*orchestrator.Orchestrator, error) {
	p, err := a.openPool(ctx, b)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(p, b.provider,
		remote.WithMaxRetries(a.cfg.MaxRetries),
		remote.WithBaseDelay(a.cfg.BaseDelay),
		remote.WithRateLimitDelay(a.cfg.RateLimitDelay),
		remote.WithLogger(a.logger),
	)
	front := frontier.New(a.db, frontier.WithLogger(a.logger))
	extractor := contact.NewExtractor()

	contactOpts := []pipeline.ContactStepOption{pipeline.WithContactLogger(a.logger)}
	if a.cfg.ExpandLinkPages && b.web != nil {
		pages := linkpage.NewFetcher(b.web, linkpage.WithLogger(a.logger))
		contactOpts = append(contactOpts, pipeline.WithPageExpander(pages))
	}

	batch := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewCandidatePipeline(client, extractor, front, a.logger, contactOpts...)
		},
		front,
		pipeline.WithBatchLogger(a.logger),
	)

	return orchestrator.New(a.db, front, batch,
		orchestrator.WithIdleInterval(a.cfg.IdleInterval),
		orchestrator.WithInterBatchDelay(a.cfg.InterBatchDelay),
		orchestrator.WithErrorBackoff(a.cfg.ErrorBackoff),
		orchestrator.WithMaxConsecutiveErrors(a.cfg.MaxConsecutiveErrors),
		orchestrator.WithStopWhenIdle(once),
		orchestrator.WithActivityLog(a.db),
		orchestrator.WithLogger(a.logger),
	), nil
}
