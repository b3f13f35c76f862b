package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/secret"
	"github.com/nao1215/scoutgraph/internal/source"
	"github.com/nao1215/scoutgraph/internal/source/memsource"
)

type fakeRecorder struct {
	mu       sync.Mutex
	usage    map[string]int
	statuses map[string]model.IdentityStatus
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{usage: map[string]int{}, statuses: map[string]model.IdentityStatus{}}
}

func (r *fakeRecorder) RecordUsage(_ context.Context, handle string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[handle]++
	return nil
}

func (r *fakeRecorder) SetIdentityStatus(_ context.Context, handle string, status model.IdentityStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[handle] = status
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func identities(handles ...string) []model.Identity {
	out := make([]model.Identity, 0, len(handles))
	for _, h := range handles {
		out = append(out, model.Identity{Handle: h, CredentialRef: "pw-" + h, Status: model.IdentityActive})
	}
	return out
}

func mustAcquire(t *testing.T, p *Pool) *Lease {
	t.Helper()

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	return lease
}

func TestNew(t *testing.T) {
	t.Parallel()

	ids := []model.Identity{
		{Handle: "backup1", Status: model.IdentityBackup},
		{Handle: "a", Status: model.IdentityActive},
		{Handle: "gone", Status: model.IdentityBanned},
		{Handle: "off", Status: model.IdentityInactive},
		{Handle: "b", Status: model.IdentityActive},
		{Handle: "a", Status: model.IdentityActive},
	}
	p := New(ids, memsource.New(), nil)
	if p.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", p.Size())
	}
	want := []string{"a", "b", "backup1"}
	for i, st := range p.Status() {
		if st.Handle != want[i] {
			t.Errorf("ring[%d] = %s, want %s", i, st.Handle, want[i])
		}
	}
	if p.Current() != "a" {
		t.Errorf("Current() = %s, want a", p.Current())
	}
}

func TestAcquireRotatesAfterCap(t *testing.T) {
	t.Parallel()

	const hourlyCap = 3
	rec := newFakeRecorder()
	p := New(identities("a", "b"), memsource.New(), nil, WithHourlyCap(hourlyCap), WithUsageRecorder(rec))
	ctx := context.Background()

	for i := range hourlyCap {
		lease := mustAcquire(t, p)
		if lease.Identity != "a" {
			t.Fatalf("call %d served by %s, want a", i+1, lease.Identity)
		}
		p.Release(ctx, lease, OutcomeSuccess)
	}

	lease := mustAcquire(t, p)
	if lease.Identity != "b" {
		t.Errorf("call %d served by %s, want b", hourlyCap+1, lease.Identity)
	}
	p.Release(ctx, lease, OutcomeSuccess)
	if p.Current() != "b" {
		t.Errorf("Current() = %s, want b", p.Current())
	}
	if rec.usage["a"] != hourlyCap || rec.usage["b"] != 1 {
		t.Errorf("recorded usage = %v", rec.usage)
	}
}

func TestAcquireExhaustsAfterNTimesCap(t *testing.T) {
	t.Parallel()

	const n, hourlyCap = 3, 2
	p := New(identities("a", "b", "c"), memsource.New(), nil, WithHourlyCap(hourlyCap))
	ctx := context.Background()

	for range n * hourlyCap {
		p.Release(ctx, mustAcquire(t, p), OutcomeSuccess)
	}
	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrPoolExhausted", err)
	}
	for _, st := range p.Status() {
		if st.RequestsThisHour != hourlyCap {
			t.Errorf("%s RequestsThisHour = %d, want %d", st.Handle, st.RequestsThisHour, hourlyCap)
		}
	}
}

func TestEmptyPool(t *testing.T) {
	t.Parallel()

	p := New(nil, memsource.New(), nil)
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Acquire() error = %v, want ErrPoolExhausted", err)
	}
	if p.Current() != "" {
		t.Errorf("Current() = %q", p.Current())
	}
	p.Rotate()
}

func TestReleaseFreesSlotOnFailure(t *testing.T) {
	t.Parallel()

	p := New(identities("a"), memsource.New(), nil, WithHourlyCap(1))
	ctx := context.Background()

	for _, outcome := range []Outcome{OutcomeRateLimited, OutcomeAuthFailure, OutcomeError} {
		lease := mustAcquire(t, p)
		p.Release(ctx, lease, outcome)
	}
	lease := mustAcquire(t, p)
	p.Release(ctx, lease, OutcomeSuccess)
	p.Release(ctx, lease, OutcomeError)

	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Acquire() error = %v, want ErrPoolExhausted", err)
	}
}

func TestWindowSlides(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := New(identities("a"), memsource.New(), nil, WithHourlyCap(2), WithClock(clock.Now))
	ctx := context.Background()

	p.Release(ctx, mustAcquire(t, p), OutcomeSuccess)
	clock.Advance(30 * time.Minute)
	p.Release(ctx, mustAcquire(t, p), OutcomeSuccess)

	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrPoolExhausted", err)
	}
	clock.Advance(31 * time.Minute)
	lease := mustAcquire(t, p)
	if lease.Identity != "a" {
		t.Errorf("Identity = %s", lease.Identity)
	}
}

func TestRotate(t *testing.T) {
	t.Parallel()

	p := New(identities("a", "b", "c"), memsource.New(), nil)
	p.Rotate()
	if p.Current() != "b" {
		t.Errorf("Current() = %s, want b", p.Current())
	}
	p.Rotate()
	p.Rotate()
	if p.Current() != "a" {
		t.Errorf("Current() = %s, want a", p.Current())
	}
	if lease := mustAcquire(t, p); lease.Identity != "a" {
		t.Errorf("Identity = %s, want a", lease.Identity)
	}
}

func TestAuthFailureMarksIdentityFailed(t *testing.T) {
	t.Parallel()

	src := memsource.New()
	src.FailNext(memsource.OpLogin, "a", source.ErrChallengeRequired)
	rec := newFakeRecorder()
	p := New(identities("a", "b"), src, nil, WithUsageRecorder(rec))

	lease := mustAcquire(t, p)
	if lease.Identity != "b" {
		t.Fatalf("Identity = %s, want b", lease.Identity)
	}
	if rec.statuses["a"] != model.IdentityInactive {
		t.Errorf("a status = %q, want inactive", rec.statuses["a"])
	}
	st := p.Status()[0]
	if !st.Failed || st.LastError == "" || st.RequestsThisHour != 0 {
		t.Errorf("unexpected status of a: %+v", st)
	}

	// A failed identity is never tried again.
	p.Rotate()
	if p.Current() != "a" {
		t.Fatalf("Current() = %s, want a", p.Current())
	}
	if lease := mustAcquire(t, p); lease.Identity != "b" {
		t.Errorf("Identity = %s, want b", lease.Identity)
	}
	if src.Logins("a") != 1 {
		t.Errorf("Logins(a) = %d, want 1", src.Logins("a"))
	}
}

func TestAllIdentitiesRejected(t *testing.T) {
	t.Parallel()

	src := memsource.New()
	src.FailNext(memsource.OpLogin, "a", source.ErrTwoFactorRequired)
	src.FailNext(memsource.OpLogin, "b", source.ErrAuthRequired)
	p := New(identities("a", "b"), src, nil)

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Acquire() error = %v, want ErrPoolExhausted", err)
	}
}

func TestTransientLoginErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	src := memsource.New()
	src.FailNext(memsource.OpLogin, "a", boom)
	p := New(identities("a"), src, nil)
	ctx := context.Background()

	_, err := p.Acquire(ctx)
	if !errors.Is(err, boom) || errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Acquire() error = %v, want transient error", err)
	}
	if p.Status()[0].Failed {
		t.Error("transient login failure must not mark the identity failed")
	}
	if lease := mustAcquire(t, p); lease.Identity != "a" {
		t.Errorf("Identity = %s, want a", lease.Identity)
	}
}

func TestSessionReuseAcrossPools(t *testing.T) {
	t.Parallel()

	src := memsource.New()
	store := NewMemorySessionStore()
	ctx := context.Background()

	p1 := New(identities("a"), src, nil, WithSessionStore(store))
	mustAcquire(t, p1)
	if src.Logins("a") != 1 {
		t.Fatalf("Logins = %d, want 1", src.Logins("a"))
	}

	p2 := New(identities("a"), src, nil, WithSessionStore(store))
	mustAcquire(t, p2)
	if src.Logins("a") != 1 {
		t.Errorf("stored session was not reused, Logins = %d", src.Logins("a"))
	}

	src.Revoke("a")
	p3 := New(identities("a"), src, nil, WithSessionStore(store))
	mustAcquire(t, p3)
	if src.Logins("a") != 2 {
		t.Errorf("rejected session did not trigger a login, Logins = %d", src.Logins("a"))
	}
	if _, err := store.Load(ctx, "a"); err != nil {
		t.Errorf("new session was not saved: %v", err)
	}
}

func TestEvict(t *testing.T) {
	t.Parallel()

	src := memsource.New()
	store := NewMemorySessionStore()
	p := New(identities("a"), src, nil, WithSessionStore(store))
	ctx := context.Background()

	p.Release(ctx, mustAcquire(t, p), OutcomeSuccess)
	p.Evict(ctx, "a")
	if _, err := store.Load(ctx, "a"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() after Evict error = %v, want ErrNoSession", err)
	}
	if p.Status()[0].LoggedIn {
		t.Error("session still cached after Evict")
	}
	mustAcquire(t, p)
	if src.Logins("a") != 2 {
		t.Errorf("Logins = %d, want 2", src.Logins("a"))
	}
	p.Evict(ctx, "unknown")
}

func TestSealedCredentials(t *testing.T) {
	t.Parallel()

	sealer, err := secret.NewSealer([]byte("passphrase"), secret.WithCost(1<<10))
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	sealed, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	src := memsource.New()
	src.SetPassword("a", "hunter2")
	p := New([]model.Identity{{Handle: "a", CredentialRef: sealed, Status: model.IdentityActive}}, src, sealer)
	if lease := mustAcquire(t, p); lease.Identity != "a" {
		t.Errorf("Identity = %s", lease.Identity)
	}

	t.Run("wrong passphrase fails the identity", func(t *testing.T) {
		t.Parallel()

		other, _ := secret.NewSealer([]byte("other"), secret.WithCost(1<<10))
		p := New([]model.Identity{{Handle: "a", CredentialRef: sealed, Status: model.IdentityActive}}, src, other)
		if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolExhausted) {
			t.Errorf("Acquire() error = %v, want ErrPoolExhausted", err)
		}
	})
}

func TestConcurrentAcquireNeverExceedsCap(t *testing.T) {
	t.Parallel()

	const hourlyCap, workers = 10, 64
	src := memsource.New()
	p := New(identities("a", "b"), src, nil, WithHourlyCap(hourlyCap))
	ctx := context.Background()

	var ok, exhausted atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(ctx)
			if errors.Is(err, ErrPoolExhausted) {
				exhausted.Add(1)
				return
			}
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			ok.Add(1)
			p.Release(ctx, lease, OutcomeSuccess)
		}()
	}
	wg.Wait()

	if ok.Load() != 2*hourlyCap {
		t.Errorf("successful leases = %d, want %d", ok.Load(), 2*hourlyCap)
	}
	if exhausted.Load() != workers-2*hourlyCap {
		t.Errorf("exhausted = %d, want %d", exhausted.Load(), workers-2*hourlyCap)
	}
	if src.Logins("a") != 1 || src.Logins("b") != 1 {
		t.Errorf("concurrent logins were not collapsed: a=%d b=%d", src.Logins("a"), src.Logins("b"))
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	src := memsource.New()
	src.FailNext(memsource.OpLogin, "b", source.ErrChallengeRequired)
	p := New(identities("a", "b"), src, nil)
	ctx := context.Background()

	if err := p.Check(ctx, "a"); err != nil {
		t.Errorf("Check(a) error = %v", err)
	}
	if err := p.Check(ctx, "b"); !errors.Is(err, ErrAuthFailure) || !errors.Is(err, source.ErrChallengeRequired) {
		t.Errorf("Check(b) error = %v", err)
	}
	if err := p.Check(ctx, "zzz"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("Check(zzz) error = %v", err)
	}
	st := p.Status()
	if !st[0].LoggedIn || st[0].RequestsThisHour != 0 || !st[1].Failed {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	tests := map[Outcome]string{
		OutcomeSuccess:     "success",
		OutcomeRateLimited: "rate_limited",
		OutcomeAuthFailure: "auth_failure",
		OutcomeError:       "error",
		Outcome(42):        "unknown",
	}
	for o, want := range tests {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", o, o.String(), want)
		}
	}
}
