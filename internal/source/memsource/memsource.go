// Package memsource is an in-memory source.Provider.
//
// It serves a fixed social graph, either built in code or loaded from a
// YAML fixture, and can be scripted to fail specific calls. scoutgraph uses
// it for offline runs and the package tests use it as their remote source.
package memsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/source"
)

// Operation names used to script failures.
const (
	OpLogin     = "login"
	OpProbe     = "probe"
	OpProfile   = "profile"
	OpActivity  = "activity"
	OpFollowing = "following"
)

// Account is one node of the graph.
type Account struct {
	Profile   model.Profile
	Activity  []model.ActivityItem
	Following []string
}

// Source is an in-memory graph. It is safe for concurrent use.
type Source struct {
	mu        sync.Mutex
	accounts  map[string]Account
	passwords map[string]string
	sessions  map[string]string // token -> identity
	failures  map[string][]error
	calls     map[string]int
}

// New returns an empty Source.
func New() *Source {
	return &Source{
		accounts:  make(map[string]Account),
		passwords: make(map[string]string),
		sessions:  make(map[string]string),
		failures:  make(map[string][]error),
		calls:     make(map[string]int),
	}
}

// Put adds or replaces an account keyed by its normalized handle.
func (s *Source) Put(a Account) {
	h := model.MustNormalizeHandle(a.Profile.Handle)
	a.Profile.Handle = h
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[h] = a
}

// SetPassword restricts logins of identity to password. Identities without
// a password accept any.
func (s *Source) SetPassword(identity, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[identity] = password
}

// FailNext queues errors returned by the next calls of op for key. key is
// the identity for OpLogin and OpProbe and the target handle otherwise.
func (s *Source) FailNext(op, key string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := op + "/" + key
	s.failures[k] = append(s.failures[k], errs...)
}

// Revoke invalidates every session of identity.
func (s *Source) Revoke(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, id := range s.sessions {
		if id == identity {
			delete(s.sessions, tok)
		}
	}
}

// Calls returns how many data calls identity made, including failed ones.
func (s *Source) Calls(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[identity]
}

// Logins returns how many login calls identity made.
func (s *Source) Logins(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[OpLogin+"/"+identity]
}

func (s *Source) popFailure(op, key string) error {
	k := op + "/" + key
	q := s.failures[k]
	if len(q) == 0 {
		return nil
	}
	s.failures[k] = q[1:]
	return q[0]
}

type session struct {
	identity string
	token    string
}

// Identity implements source.Session.
func (m *session) Identity() string { return m.identity }

// State implements source.Session.
func (m *session) State() ([]byte, error) {
	return json.Marshal(map[string]string{"identity": m.identity, "token": m.token})
}

// Login implements source.Authenticator.
func (s *Source) Login(ctx context.Context, cred source.Credential) (source.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpLogin+"/"+cred.Handle]++
	if err := s.popFailure(OpLogin, cred.Handle); err != nil {
		return nil, err
	}
	if pw, ok := s.passwords[cred.Handle]; ok && pw != cred.Password {
		return nil, fmt.Errorf("login %s: %w", cred.Handle, source.ErrAuthRequired)
	}
	tok := uuid.NewString()
	s.sessions[tok] = cred.Handle
	return &session{identity: cred.Handle, token: tok}, nil
}

// Resume implements source.Authenticator.
func (s *Source) Resume(_ context.Context, cred source.Credential, state []byte) (source.Session, error) {
	var st map[string]string
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if st["identity"] != cred.Handle {
		return nil, source.ErrAuthRequired
	}
	return &session{identity: cred.Handle, token: st["token"]}, nil
}

// Probe implements source.Authenticator.
func (s *Source) Probe(ctx context.Context, sess source.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, ok := sess.(*session)
	if !ok {
		return source.ErrAuthRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(OpProbe, m.identity); err != nil {
		return err
	}
	if s.sessions[m.token] != m.identity {
		return source.ErrAuthRequired
	}
	return nil
}

// lookup validates the session, applies scripted failures and returns the account.
func (s *Source) lookup(ctx context.Context, sess source.Session, op, handle string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	m, ok := sess.(*session)
	if !ok {
		return Account{}, source.ErrAuthRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[m.identity]++
	if s.sessions[m.token] != m.identity {
		return Account{}, source.ErrAuthRequired
	}
	if err := s.popFailure(op, handle); err != nil {
		return Account{}, err
	}
	a, ok := s.accounts[handle]
	if !ok {
		return Account{}, fmt.Errorf("%s: %w", handle, source.ErrNotFound)
	}
	return a, nil
}

// GetProfile implements source.DataSource.
func (s *Source) GetProfile(ctx context.Context, sess source.Session, handle string) (model.Profile, error) {
	a, err := s.lookup(ctx, sess, OpProfile, handle)
	if err != nil {
		return model.Profile{}, err
	}
	return a.Profile, nil
}

// GetRecentActivity implements source.DataSource.
func (s *Source) GetRecentActivity(ctx context.Context, sess source.Session, handle string, n int) ([]model.ActivityItem, error) {
	a, err := s.lookup(ctx, sess, OpActivity, handle)
	if err != nil {
		return nil, err
	}
	n = min(max(n, 0), len(a.Activity))
	return append([]model.ActivityItem(nil), a.Activity[:n]...), nil
}

// GetFollowing implements source.DataSource.
func (s *Source) GetFollowing(ctx context.Context, sess source.Session, handle string, limit int) ([]string, error) {
	a, err := s.lookup(ctx, sess, OpFollowing, handle)
	if err != nil {
		return nil, err
	}
	limit = min(max(limit, 0), len(a.Following))
	return append([]string(nil), a.Following[:limit]...), nil
}

// Fixture is the YAML form of a graph.
type Fixture struct {
	Identities map[string]string `yaml:"identities"`
	Accounts   []FixtureAccount  `yaml:"accounts"`
}

// FixtureAccount is one account in a Fixture.
type FixtureAccount struct {
	Handle       string            `yaml:"handle"`
	DisplayName  string            `yaml:"displayName"`
	Followers    int64             `yaml:"followers"`
	Following    int64             `yaml:"following"`
	Posts        int64             `yaml:"posts"`
	Bio          string            `yaml:"bio"`
	ExternalLink string            `yaml:"externalLink"`
	Category     string            `yaml:"category"`
	PublicEmail  string            `yaml:"publicEmail"`
	PublicPhone  string            `yaml:"publicPhone"`
	Verified     bool              `yaml:"verified"`
	Business     bool              `yaml:"business"`
	Activity     []FixtureActivity `yaml:"activity"`
	Follows      []string          `yaml:"follows"`
}

// FixtureActivity is one activity item in a FixtureAccount.
type FixtureActivity struct {
	Views    int64 `yaml:"views"`
	Likes    int64 `yaml:"likes"`
	Comments int64 `yaml:"comments"`
}

// Load parses a YAML fixture.
func Load(r io.Reader) (*Source, error) {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	s := New()
	for id, pw := range f.Identities {
		s.SetPassword(id, pw)
	}
	for i, fa := range f.Accounts {
		if _, err := model.NormalizeHandle(fa.Handle); err != nil {
			return nil, fmt.Errorf("fixture account %d: %w", i, err)
		}
		a := Account{
			Profile: model.Profile{
				Handle:       fa.Handle,
				DisplayName:  fa.DisplayName,
				Followers:    fa.Followers,
				Following:    fa.Following,
				Posts:        fa.Posts,
				Bio:          fa.Bio,
				ExternalLink: fa.ExternalLink,
				Category:     fa.Category,
				PublicEmail:  fa.PublicEmail,
				PublicPhone:  fa.PublicPhone,
				Verified:     fa.Verified,
				Business:     fa.Business,
			},
			Following: fa.Follows,
		}
		for j, act := range fa.Activity {
			a.Activity = append(a.Activity, model.ActivityItem{
				ID:       fmt.Sprintf("%s-%d", fa.Handle, j+1),
				Views:    act.Views,
				Likes:    act.Likes,
				Comments: act.Comments,
			})
		}
		s.Put(a)
	}
	return s, nil
}

// LoadFile parses the YAML fixture at path.
func LoadFile(path string) (*Source, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided fixture path
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}
