package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/pool"
	"github.com/nao1215/scoutgraph/internal/source"
	"github.com/nao1215/scoutgraph/internal/source/httpsource"
	"github.com/nao1215/scoutgraph/internal/source/memsource"
	"github.com/nao1215/scoutgraph/internal/transport"
)

// redisSessionTTL expires shared sessions that no process refreshed.
const redisSessionTTL = 7 * 24 * time.Hour

// backend is a connected profile source with its egress.
type backend struct {
	provider source.Provider

	// web fetches link-in-bio pages. Nil in fixture mode.
	web *http.Client

	closers []func() error
}

// Close stops everything the backend started, last started first.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// addFixtureFlag registers --fixture on commands that talk to a source.
func addFixtureFlag(cmd *cobra.Command) {
	cmd.Flags().String("fixture", "",
		"Serve profiles from a YAML graph fixture instead of the HTTP source")
}

// openBackend connects the profile source: the fixture named by --fixture,
// or the HTTP source behind a direct, proxied or embedded Tor egress.
func (a *app) openBackend(ctx context.Context, cmd *cobra.Command) (*backend, error) {
	fixture, err := cmd.Flags().GetString("fixture")
	if err != nil {
		return nil, err
	}
	if fixture != "" {
		src, err := memsource.LoadFile(fixture)
		if err != nil {
			return nil, err
		}
		a.logger.Info("serving profiles from fixture", "path", fixture)
		return &backend{provider: src}, nil
	}

	if err := a.cfg.ValidateForRun(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	b := &backend{}
	egress, err := a.openEgress(ctx, cmd.OutOrStdout(), b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	src, err := httpsource.New(a.cfg.SourceBaseURL, egress,
		httpsource.WithLogger(a.logger),
		httpsource.WithTransportOptions(a.egressOptions()...),
	)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.provider = src
	b.web = egress.NewHTTPClient()
	return b, nil
}

func (a *app) egressOptions() []transport.Option {
	return []transport.Option{
		transport.WithTimeout(a.cfg.Timeout),
		transport.WithUserAgent(a.cfg.UserAgent),
	}
}

// openEgress returns the client source traffic leaves through and
// registers any cleanup on b.
func (a *app) openEgress(ctx context.Context, out io.Writer, b *backend) (*transport.Client, error) {
	opts := a.egressOptions()

	if a.cfg.UseTor {
		fmt.Fprintln(out, "Starting embedded Tor daemon...")
		fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(a.cfg.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		b.closers = append(b.closers, tor.Stop)
		a.logger.Info("embedded Tor daemon started", "proxy", tor.ProxyURL())

		egress, err := tor.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		return egress, a.checkEgress(ctx, egress)
	}

	egress, err := transport.NewClient(a.cfg.ProxyURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create egress client: %w", err)
	}
	if a.cfg.ProxyURL != "" {
		return egress, a.checkEgress(ctx, egress)
	}
	return egress, nil
}

func (a *app) checkEgress(ctx context.Context, egress *transport.Client) error {
	status := egress.CheckProxy(ctx, a.cfg.SourceBaseURL)
	if err := status.Err(); err != nil {
		return fmt.Errorf("proxy check failed for %s: %w", egress.ProxyURL(), err)
	}
	a.logger.Info("proxy connection verified", "proxy", egress.ProxyURL())
	return nil
}

// openSessionStore returns the configured session store.
func (a *app) openSessionStore(ctx context.Context, b *backend) (pool.SessionStore, error) {
	switch a.cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := pool.DialRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		return pool.NewRedisSessionStore(client, redisSessionTTL), nil
	default:
		store, err := pool.NewFileSessionStore(a.cfg.SessionDir())
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// openPool loads identities from the database and builds the pool.
func (a *app) openPool(ctx context.Context, b *backend) (*pool.Pool, error) {
	identities, err := a.db.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.withSealer(); err != nil {
		return nil, err
	}
	store, err := a.openSessionStore(ctx, b)
	if err != nil {
		return nil, err
	}

	p := pool.New(identities, b.provider, a.sealer,
		pool.WithHourlyCap(a.cfg.HourlyCap),
		pool.WithSessionStore(store),
		pool.WithUsageRecorder(a.db),
		pool.WithLogger(a.logger),
	)
	if p.Size() == 0 {
		return nil, errNoIdentities
	}
	return p, nil
}
