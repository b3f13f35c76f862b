package admin

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/database"
	"github.com/nao1215/scoutgraph/internal/model"
	"github.com/nao1215/scoutgraph/internal/secret"
)

func newTestService(t *testing.T) (*Service, *database.DB, *secret.Sealer) {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sealer, err := secret.NewSealer([]byte("test passphrase"), secret.WithCost(1<<10))
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	return NewService(db, WithSealer(sealer)), db, sealer
}

func TestRuntimeSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("concurrency and level", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t)
		if err := svc.SetConcurrencyLimit(ctx, 8); err != nil {
			t.Fatalf("SetConcurrencyLimit() error = %v", err)
		}
		if err := svc.SetMaxLevel(ctx, 2); err != nil {
			t.Fatalf("SetMaxLevel() error = %v", err)
		}
		ov, err := svc.GetStats(ctx)
		if err != nil {
			t.Fatalf("GetStats() error = %v", err)
		}
		if ov.Config.ConcurrentLimit != 8 || ov.Config.MaxLevel != 2 {
			t.Errorf("Config = %+v", ov.Config)
		}
		if err := svc.SetConcurrencyLimit(ctx, 0); !errors.Is(err, config.ErrInvalidRunValue) {
			t.Errorf("SetConcurrencyLimit(0) error = %v, want ErrInvalidRunValue", err)
		}
	})

	t.Run("criteria are validated before storing", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t)
		followers := int64(1000)
		badRate := -1.0
		err := svc.SetCriteria(ctx, Criteria{MinFollowers: &followers, MinEngagementRate: &badRate})
		if !errors.Is(err, config.ErrInvalidRunValue) {
			t.Fatalf("SetCriteria() error = %v", err)
		}
		view, _ := svc.ViewConfig(ctx)
		if view[config.KeyMinFollowers] != "500000" {
			t.Errorf("min_followers changed to %s despite invalid rate", view[config.KeyMinFollowers])
		}

		nan := math.NaN()
		if err := svc.SetCriteria(ctx, Criteria{MinEngagementRate: &nan}); !errors.Is(err, config.ErrInvalidRunValue) {
			t.Errorf("SetCriteria(NaN) error = %v, want ErrInvalidRunValue", err)
		}
		inf := math.Inf(1)
		if err := svc.SetCriteria(ctx, Criteria{MinEngagementRate: &inf}); !errors.Is(err, config.ErrInvalidRunValue) {
			t.Errorf("SetCriteria(+Inf) error = %v, want ErrInvalidRunValue", err)
		}

		rate := 3.5
		if err := svc.SetCriteria(ctx, Criteria{MinFollowers: &followers, MinEngagementRate: &rate}); err != nil {
			t.Fatalf("SetCriteria() error = %v", err)
		}
		view, _ = svc.ViewConfig(ctx)
		if view[config.KeyMinFollowers] != "1000" || view[config.KeyMinEngagementRate] != "3.5" {
			t.Errorf("ViewConfig() = %v", view)
		}
		if view[config.KeyMinAvgViews] != "100000" {
			t.Errorf("min_avg_views = %s, want unchanged", view[config.KeyMinAvgViews])
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		t.Parallel()

		svc, db, _ := newTestService(t)
		if err := svc.Pause(ctx); err != nil {
			t.Fatalf("Pause() error = %v", err)
		}
		rc, _ := db.LoadRunConfig(ctx)
		if !rc.Paused {
			t.Error("expected paused run config")
		}
		if err := svc.Resume(ctx); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
		rc, _ = db.LoadRunConfig(ctx)
		if rc.Paused {
			t.Error("expected active run config")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t)
		if err := svc.SetConfig(ctx, "turbo", "on"); !errors.Is(err, config.ErrUnknownRunKey) {
			t.Errorf("SetConfig() error = %v, want ErrUnknownRunKey", err)
		}
	})
}

func TestSeeds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, db, _ := newTestService(t)

	seed, err := svc.AddSeed(ctx, "  @Alpha ")
	if err != nil {
		t.Fatalf("AddSeed() error = %v", err)
	}
	if seed.Handle != "alpha" {
		t.Errorf("Handle = %q, want alpha", seed.Handle)
	}
	if _, err := svc.AddSeed(ctx, "ALPHA"); !errors.Is(err, database.ErrDuplicateHandle) {
		t.Errorf("duplicate AddSeed() error = %v", err)
	}

	res, err := svc.AddSeeds(ctx, []string{"beta", "", "@", "alpha", "gamma", "Beta"})
	if err != nil {
		t.Fatalf("AddSeeds() error = %v", err)
	}
	if !slices.Equal(res.Added, []string{"beta", "gamma"}) {
		t.Errorf("Added = %v", res.Added)
	}
	if !slices.Equal(res.Duplicates, []string{"alpha", "Beta"}) {
		t.Errorf("Duplicates = %v", res.Duplicates)
	}
	if !slices.Equal(res.Invalid, []string{"@"}) {
		t.Errorf("Invalid = %v", res.Invalid)
	}

	seeds, err := svc.ListSeeds(ctx, model.StatusPending)
	if err != nil {
		t.Fatalf("ListSeeds() error = %v", err)
	}
	if len(seeds) != 3 {
		t.Errorf("got %d pending seeds, want 3", len(seeds))
	}

	entries, _ := db.RecentActivity(ctx, 10)
	added := 0
	for _, e := range entries {
		if e.Action == model.ActionSeedAdded {
			added++
		}
	}
	if added != 3 {
		t.Errorf("seed_added entries = %d, want 3", added)
	}
}

func TestIdentities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("credentials are sealed", func(t *testing.T) {
		t.Parallel()

		svc, db, sealer := newTestService(t)
		id, err := svc.AddIdentity(ctx, NewIdentity{Handle: "@Scout1", Password: "hunter22"})
		if err != nil {
			t.Fatalf("AddIdentity() error = %v", err)
		}
		if id.Handle != "scout1" || id.Status != model.IdentityActive {
			t.Errorf("identity = %+v", id)
		}

		stored, err := db.GetIdentity(ctx, "scout1")
		if err != nil {
			t.Fatalf("GetIdentity() error = %v", err)
		}
		if stored.CredentialRef == "hunter22" || !secret.IsSealed(stored.CredentialRef) {
			t.Fatalf("credential stored in clear: %q", stored.CredentialRef)
		}
		plain, err := sealer.Open(stored.CredentialRef)
		if err != nil || plain != "hunter22" {
			t.Errorf("Open() = %q, %v", plain, err)
		}
	})

	t.Run("backup status and listing", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t)
		if _, err := svc.AddIdentity(ctx, NewIdentity{Handle: "a", Password: "pw"}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.AddIdentity(ctx, NewIdentity{Handle: "b", Password: "pw", Backup: true}); err != nil {
			t.Fatal(err)
		}
		backups, err := svc.ListIdentities(ctx, model.IdentityBackup)
		if err != nil {
			t.Fatalf("ListIdentities() error = %v", err)
		}
		if len(backups) != 1 || backups[0].Handle != "b" {
			t.Errorf("backups = %+v", backups)
		}
		if err := svc.SetIdentityStatus(ctx, "a", model.IdentityBanned); err != nil {
			t.Fatalf("SetIdentityStatus() error = %v", err)
		}
		if err := svc.SetIdentityStatus(ctx, "a", "zombie"); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()

		svc, db, _ := newTestService(t)
		if _, err := svc.AddIdentity(ctx, NewIdentity{Handle: "a"}); !errors.Is(err, ErrEmptyCredential) {
			t.Errorf("error = %v, want ErrEmptyCredential", err)
		}
		if _, err := NewService(db).AddIdentity(ctx, NewIdentity{Handle: "a", Password: "pw"}); !errors.Is(err, ErrNoSealer) {
			t.Errorf("error = %v, want ErrNoSealer", err)
		}
		if _, err := svc.AddIdentity(ctx, NewIdentity{Handle: "a", Password: "pw"}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.AddIdentity(ctx, NewIdentity{Handle: "a", Password: "pw"}); !errors.Is(err, database.ErrDuplicateIdentity) {
			t.Errorf("error = %v, want ErrDuplicateIdentity", err)
		}
	})
}

func acceptFixture(t *testing.T, db *database.DB, handle string, at time.Time) {
	t.Helper()

	_, err := db.InsertAccepted(context.Background(), &model.AcceptedCandidate{
		Handle:      handle,
		DisplayName: "Jane Doe",
		Contacts: model.ContactRecord{
			MessagingHandle: "janedoe",
			Email:           "jane@studio.io",
			Phone:           "+15550109999",
			Website:         "https://mystore.com",
		},
		Metrics: model.AcceptedMetrics{
			Followers:         600000,
			AvgRecentViews:    112000,
			EngagementRatePct: 2.5,
		},
		Level:      1,
		Bio:        "creator",
		AcceptedAt: at,
	})
	if err != nil {
		t.Fatalf("InsertAccepted() error = %v", err)
	}
}

func TestAccepted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, db, _ := newTestService(t)
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	acceptFixture(t, db, "alpha", at)
	acceptFixture(t, db, "beta", at.Add(time.Hour))

	t.Run("export has fixed column order", func(t *testing.T) {
		rows, err := svc.ExportAccepted(ctx)
		if err != nil {
			t.Fatalf("ExportAccepted() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows", len(rows))
		}
		want := []string{
			"alpha", "Jane Doe", "600000", "112000", "2.50", "janedoe",
			"jane@studio.io", "+15550109999", "https://mystore.com", "creator", "1",
			"2026-03-01 12:30:00",
		}
		if got := rows[0].Values(); !slices.Equal(got, want) {
			t.Errorf("Values() = %v, want %v", got, want)
		}
		if len(ExportColumns) != len(want) {
			t.Errorf("ExportColumns has %d entries", len(ExportColumns))
		}
	})

	t.Run("recent and notes", func(t *testing.T) {
		recent, err := svc.RecentAccepted(ctx, 1)
		if err != nil {
			t.Fatalf("RecentAccepted() error = %v", err)
		}
		if len(recent) != 1 || recent[0].Handle != "beta" {
			t.Errorf("recent = %+v", recent)
		}
		if err := svc.AnnotateAccepted(ctx, "@Beta", "contacted"); err != nil {
			t.Fatalf("AnnotateAccepted() error = %v", err)
		}
		got, _ := db.GetAccepted(ctx, "beta")
		if got.Notes != "contacted" {
			t.Errorf("Notes = %q", got.Notes)
		}
		if err := svc.AnnotateAccepted(ctx, "nobody", "x"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestRequeueStuck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, db, _ := newTestService(t)
	seed, err := svc.AddSeed(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.TransitionSeed(ctx, seed.ID, model.StatusProcessing); err != nil {
		t.Fatal(err)
	}

	ov, _ := svc.GetStats(ctx)
	if ov.Stats.Processing != 1 {
		t.Errorf("Processing = %d, want 1", ov.Stats.Processing)
	}
	n, err := svc.RequeueStuck(ctx)
	if err != nil {
		t.Fatalf("RequeueStuck() error = %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}
	pending, _ := svc.ListSeeds(ctx, model.StatusPending)
	if len(pending) != 1 {
		t.Errorf("pending seeds = %d", len(pending))
	}
	entries, _ := svc.RecentActivity(ctx, 1)
	if len(entries) != 1 || entries[0].Action != model.ActionRequeued {
		t.Errorf("latest activity = %+v", entries)
	}
}
