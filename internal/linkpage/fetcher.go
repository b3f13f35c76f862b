// Package linkpage expands link-in-bio pages.
//
// Many profiles publish a single external link to an aggregator page that
// lists their real contact channels. When a profile's external link points
// at a known aggregator, Fetcher downloads the page with a size limit and
// returns its outbound links, mailto and tel targets and visible text so
// the contact extractor can see them.
package linkpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaxBytes bounds the body read from an aggregator page.
const DefaultMaxBytes = 1 << 20

// ErrNotAggregator is returned by Fetch for links that are not aggregator pages.
var ErrNotAggregator = errors.New("link is not a link-in-bio page")

// aggregatorHosts are the link-in-bio services that are expanded.
var aggregatorHosts = []string{
	"linktr.ee",
	"beacons.ai",
	"lnk.bio",
	"linkin.bio",
	"bio.link",
}

// IsAggregator reports whether link points at a known link-in-bio service.
func IsAggregator(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" && !strings.Contains(link, "://") {
		if u2, err := url.Parse("https://" + strings.TrimSpace(link)); err == nil {
			host = strings.ToLower(u2.Hostname())
		}
	}
	for _, h := range aggregatorHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Fetcher downloads aggregator pages.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxBytes limits how much of a page is read.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher that uses client.
func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   client,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and parses link. It returns ErrNotAggregator for any
// link that is not on a known aggregator host.
func (f *Fetcher) Fetch(ctx context.Context, link string) (*Page, error) {
	if !IsAggregator(link) {
		return nil, ErrNotAggregator
	}
	link = strings.TrimSpace(link)
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("link page returned HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("link page has content type %q", ct)
	}

	final := link
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Parse(final, io.LimitReader(resp.Body, f.maxBytes))
}

// ExtraText returns the contact-relevant text of link, or nil when link is
// not an aggregator page or cannot be fetched.
func (f *Fetcher) ExtraText(ctx context.Context, link string) []string {
	if !IsAggregator(link) {
		return nil
	}
	page, err := f.Fetch(ctx, link)
	if err != nil {
		f.logger.Debug("link page expansion failed", "link", link, "error", err)
		return nil
	}
	return page.ExtraText()
}
