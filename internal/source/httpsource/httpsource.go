// Package httpsource implements source.Provider against a JSON HTTP API.
//
// Endpoints, relative to the base URL:
//
//	POST /api/v1/login                      {"username","password"} -> {"token"}
//	GET  /api/v1/me                          session probe
//	GET  /api/v1/users/{handle}              profile
//	GET  /api/v1/users/{handle}/reels        ?limit=n -> {"items":[...]}
//	GET  /api/v1/users/{handle}/following    ?limit=n&cursor=c -> {"users":[...],"next_cursor"}
//
// Every identity gets its own http.Client, so cookies never cross identities.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/source"
	"github.com/nao1215/scoutgraph/internal/transport"
)

const (
	// maxResponseBytes bounds every response body read by the adapter.
	maxResponseBytes = 4 << 20
	// followingPageSize is the page size requested from the following endpoint.
	followingPageSize = 50
)

// ErrForeignSession is returned when a session not created by this adapter is used.
var ErrForeignSession = errors.New("session was not created by the HTTP source")

// StatusError is an unclassified non-2xx response. Callers treat it as transient.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("source returned HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("source returned HTTP %d", e.StatusCode)
}

// Adapter talks to the HTTP API.
type Adapter struct {
	baseURL    *url.URL
	egress     *transport.Client
	egressOpts []transport.Option
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTransportOptions sets the options used to build clients for
// identities that carry their own proxy URL.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(a *Adapter) {
		a.egressOpts = append(a.egressOpts, opts...)
	}
}

// New creates an Adapter for baseURL. egress is used for identities without
// their own proxy; nil means a direct client.
func New(baseURL string, egress *transport.Client, opts ...Option) (*Adapter, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	a := &Adapter{
		baseURL: u,
		egress:  egress,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.egress == nil {
		c, err := transport.NewClient("", a.egressOpts...)
		if err != nil {
			return nil, err
		}
		a.egress = c
	}
	return a, nil
}

type session struct {
	handle string
	token  string
	base   *url.URL
	client *http.Client
}

// Identity implements source.Session.
func (s *session) Identity() string { return s.handle }

type sessionState struct {
	Handle  string         `json:"handle"`
	Token   string         `json:"token"`
	Cookies []*http.Cookie `json:"cookies,omitempty"`
}

// State implements source.Session.
func (s *session) State() ([]byte, error) {
	st := sessionState{Handle: s.handle, Token: s.token}
	if s.client.Jar != nil {
		st.Cookies = s.client.Jar.Cookies(s.base)
	}
	return json.Marshal(st)
}

func (a *Adapter) clientFor(cred source.Credential) (*http.Client, error) {
	if cred.ProxyURL == "" {
		return a.egress.NewHTTPClient(), nil
	}
	c, err := transport.NewClient(cred.ProxyURL, a.egressOpts...)
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", cred.Handle, err)
	}
	return c.NewHTTPClient(), nil
}

// Login implements source.Authenticator.
func (a *Adapter) Login(ctx context.Context, cred source.Credential) (source.Session, error) {
	client, err := a.clientFor(cred)
	if err != nil {
		return nil, err
	}
	s := &session{handle: cred.Handle, base: a.baseURL, client: client}

	body := map[string]string{"username": cred.Handle, "password": cred.Password}
	var out struct {
		Token string `json:"token"`
	}
	if err := a.do(ctx, s, http.MethodPost, "/api/v1/login", nil, body, &out); err != nil {
		return nil, fmt.Errorf("login %s: %w", cred.Handle, err)
	}
	if out.Token == "" && len(client.Jar.Cookies(a.baseURL)) == 0 {
		return nil, fmt.Errorf("login %s: %w", cred.Handle, source.ErrAuthRequired)
	}
	s.token = out.Token
	a.logger.Debug("logged in", "identity", cred.Handle)
	return s, nil
}

// Resume implements source.Authenticator.
func (a *Adapter) Resume(_ context.Context, cred source.Credential, state []byte) (source.Session, error) {
	var st sessionState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if st.Handle != cred.Handle {
		return nil, fmt.Errorf("session state belongs to %q: %w", st.Handle, source.ErrAuthRequired)
	}
	client, err := a.clientFor(cred)
	if err != nil {
		return nil, err
	}
	if len(st.Cookies) > 0 {
		client.Jar.SetCookies(a.baseURL, st.Cookies)
	}
	return &session{handle: cred.Handle, token: st.Token, base: a.baseURL, client: client}, nil
}

// Probe implements source.Authenticator.
func (a *Adapter) Probe(ctx context.Context, s source.Session) error {
	sess, err := a.own(s)
	if err != nil {
		return err
	}
	return a.do(ctx, sess, http.MethodGet, "/api/v1/me", nil, nil, nil)
}

type userPayload struct {
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	MediaCount     int64  `json:"media_count"`
	Biography      string `json:"biography"`
	ExternalURL    string `json:"external_url"`
	Category       string `json:"category"`
	PublicEmail    string `json:"public_email"`
	PublicPhone    string `json:"public_phone"`
	IsVerified     bool   `json:"is_verified"`
	IsBusiness     bool   `json:"is_business"`
	IsPrivate      bool   `json:"is_private"`
}

// GetProfile implements source.DataSource.
func (a *Adapter) GetProfile(ctx context.Context, s source.Session, handle string) (model.Profile, error) {
	sess, err := a.own(s)
	if err != nil {
		return model.Profile{}, err
	}
	var raw json.RawMessage
	if err := a.do(ctx, sess, http.MethodGet, userPath(handle, ""), nil, nil, &raw); err != nil {
		return model.Profile{}, err
	}

	// Accept both object-wrapped and bare payloads.
	var wrapped struct {
		User *userPayload `json:"user"`
	}
	var u userPayload
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		u = *wrapped.User
	} else if err := json.Unmarshal(raw, &u); err != nil {
		return model.Profile{}, fmt.Errorf("profile payload parse: %w", err)
	}

	p := model.Profile{
		Handle:       strings.TrimSpace(u.Username),
		DisplayName:  strings.TrimSpace(u.FullName),
		Followers:    nonNegative(u.FollowerCount),
		Following:    nonNegative(u.FollowingCount),
		Posts:        nonNegative(u.MediaCount),
		Bio:          u.Biography,
		ExternalLink: strings.TrimSpace(u.ExternalURL),
		Category:     strings.TrimSpace(u.Category),
		PublicEmail:  strings.TrimSpace(u.PublicEmail),
		PublicPhone:  strings.TrimSpace(u.PublicPhone),
		Verified:     u.IsVerified,
		Business:     u.IsBusiness,
		Private:      u.IsPrivate,
	}
	if p.Handle == "" {
		p.Handle = handle
	}
	return p, nil
}

type itemPayload struct {
	ID           flexID      `json:"id"`
	PlayCount    int64       `json:"play_count"`
	ViewCount    int64       `json:"view_count"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	TakenAt      int64       `json:"taken_at"`
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	*id = flexID(strings.Trim(string(b), `"`))
	return nil
}

// GetRecentActivity implements source.DataSource.
func (a *Adapter) GetRecentActivity(ctx context.Context, s source.Session, handle string, n int) ([]model.ActivityItem, error) {
	if n <= 0 {
		return nil, nil
	}
	sess, err := a.own(s)
	if err != nil {
		return nil, err
	}
	q := url.Values{"limit": {strconv.Itoa(n)}}
	var out struct {
		Items []itemPayload `json:"items"`
	}
	if err := a.do(ctx, sess, http.MethodGet, userPath(handle, "reels"), q, nil, &out); err != nil {
		return nil, err
	}

	items := make([]model.ActivityItem, 0, min(n, len(out.Items)))
	for _, it := range out.Items {
		if len(items) == n {
			break
		}
		views := it.PlayCount
		if views == 0 {
			views = it.ViewCount
		}
		item := model.ActivityItem{
			ID:       string(it.ID),
			Views:    nonNegative(views),
			Likes:    nonNegative(it.LikeCount),
			Comments: nonNegative(it.CommentCount),
		}
		if it.TakenAt > 0 {
			item.PostedAt = time.Unix(it.TakenAt, 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// GetFollowing implements source.DataSource. It follows next_cursor until
// limit handles are collected or the list ends.
func (a *Adapter) GetFollowing(ctx context.Context, s source.Session, handle string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	sess, err := a.own(s)
	if err != nil {
		return nil, err
	}

	handles := make([]string, 0, min(limit, followingPageSize))
	seenCursor := make(map[string]struct{})
	cursor := ""
	for len(handles) < limit {
		q := url.Values{"limit": {strconv.Itoa(min(limit-len(handles), followingPageSize))}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var page struct {
			Users []struct {
				Username string `json:"username"`
			} `json:"users"`
			NextCursor string `json:"next_cursor"`
		}
		if err := a.do(ctx, sess, http.MethodGet, userPath(handle, "following"), q, nil, &page); err != nil {
			if len(handles) > 0 {
				a.logger.Debug("following pagination stopped", "handle", handle, "error", err)
				return handles, nil
			}
			return nil, err
		}
		for _, u := range page.Users {
			if len(handles) == limit {
				break
			}
			if name := strings.TrimSpace(u.Username); name != "" {
				handles = append(handles, name)
			}
		}
		if page.NextCursor == "" || len(page.Users) == 0 {
			break
		}
		if _, loop := seenCursor[page.NextCursor]; loop {
			break
		}
		seenCursor[page.NextCursor] = struct{}{}
		cursor = page.NextCursor
	}
	return handles, nil
}

func (a *Adapter) own(s source.Session) (*session, error) {
	sess, ok := s.(*session)
	if !ok || sess == nil {
		return nil, ErrForeignSession
	}
	return sess, nil
}

func userPath(handle, sub string) string {
	p := "/api/v1/users/" + url.PathEscape(handle)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func nonNegative(n int64) int64 {
	return max(n, 0)
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one request and decodes a 2xx JSON body into out.
func (a *Adapter) do(ctx context.Context, s *session, method, path string, q url.Values, in, out any) error {
	u := *a.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// classify maps a non-2xx response to a source sentinel error.
func classify(status int, body []byte) error {
	var p errorPayload
	_ = json.Unmarshal(body, &p) //nolint:errcheck // body may not be JSON

	switch strings.ToLower(p.Error) {
	case "challenge_required", "checkpoint_required":
		return fmt.Errorf("%w: %s", source.ErrChallengeRequired, p.Message)
	case "two_factor_required":
		return fmt.Errorf("%w: %s", source.ErrTwoFactorRequired, p.Message)
	case "login_required", "bad_password", "invalid_credentials":
		return fmt.Errorf("%w: %s", source.ErrAuthRequired, p.Message)
	case "rate_limited", "please_wait":
		return fmt.Errorf("%w: %s", source.ErrRateLimited, p.Message)
	case "user_not_found":
		return fmt.Errorf("%w: %s", source.ErrNotFound, p.Message)
	}

	switch status {
	case http.StatusTooManyRequests:
		return source.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return source.ErrAuthRequired
	case http.StatusNotFound:
		return source.ErrNotFound
	default:
		return &StatusError{StatusCode: status, Code: p.Error, Message: p.Message}
	}
}
