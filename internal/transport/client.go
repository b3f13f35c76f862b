package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout = 30 * time.Second
	maxRedirects   = 10
)

// Client creates HTTP clients that share one egress configuration.
// The zero proxy means a direct connection.
type Client struct {
	proxyURL  *url.URL
	dialer    proxy.Dialer
	timeout   time.Duration
	userAgent string
	headers   map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall request timeout of created HTTP clients.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

// WithHeader adds a header sent with every request unless the request
// already carries it.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// NewClient creates a Client egressing through proxyURL. An empty proxyURL
// connects directly. Supported schemes are http, https, socks5 and socks5h.
//
// The proxy is not contacted here; use CheckProxy for that.
func NewClient(proxyURL string, opts ...Option) (*Client, error) {
	c := &Client{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	if strings.TrimSpace(proxyURL) == "" {
		return c, nil
	}
	u, err := ParseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	c.proxyURL = u

	if isSOCKS(u) {
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = d
	}
	return c, nil
}

// ParseProxyURL validates a proxy URL. A bare "host:port" is read as socks5.
func ParseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxyURL, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProxyScheme, u.Scheme)
	}
	if !isValidHostPort(u.Host) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyURL, u.Redacted())
	}
	return u, nil
}

func isSOCKS(u *url.URL) bool {
	return u != nil && (u.Scheme == "socks5" || u.Scheme == "socks5h")
}

// isValidHostPort checks for a non-empty host and a port in 1..65535.
func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
		if n > 65535 {
			return false
		}
	}
	return n >= 1
}

// ProxyURL returns the proxy URL with any password redacted, or "" for a
// direct client.
func (c *Client) ProxyURL() string {
	if c.proxyURL == nil {
		return ""
	}
	return c.proxyURL.Redacted()
}

// Timeout returns the request timeout of created HTTP clients.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// NewHTTPClient returns an HTTP client with its own cookie jar. Callers
// that represent different identities must not share the returned client.
func (c *Client) NewHTTPClient() *http.Client {
	tr := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	switch {
	case c.dialer != nil:
		tr.DialContext = c.DialContext
	case c.proxyURL != nil:
		tr.Proxy = http.ProxyURL(c.proxyURL)
	default:
		tr.Proxy = nil
		tr.DialContext = (&net.Dialer{Timeout: c.timeout, KeepAlive: 30 * time.Second}).DialContext
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // only fails with invalid options

	var rt http.RoundTripper = tr
	if c.userAgent != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{base: tr, userAgent: c.userAgent, headers: c.headers}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext dials address through the SOCKS5 proxy, or directly when the
// client has none.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.dialer == nil {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()
	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		// The dial goroutine may still complete; close what it returns.
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck // abandoned connection
			}
		}()
		return nil, ctx.Err()
	}
}

// headerInjectingTransport sets the User-Agent and default headers on every
// request, including redirects.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
