package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/scoutgraph/internal/report"
)

const testFixture = `identities:
  scout1: pw
  scout2: pw2
accounts:
  - handle: alpha
    displayName: Alpha
    followers: 600000
    bio: "DM via t.me/janedoe, shop: https://mystore.com"
    externalLink: https://mystore.com
    activity:
      - {views: 120000, likes: 14500, comments: 500}
      - {views: 110000, likes: 14500, comments: 500}
      - {views: 105000, likes: 14500, comments: 500}
      - {views: 130000, likes: 14500, comments: 500}
      - {views: 95000, likes: 14500, comments: 500}
    follows: [beta]
  - handle: beta
    followers: 1200
    activity:
      - {views: 300, likes: 20}
    follows: [delta]
  - handle: carol
    followers: 900
    activity:
      - {views: 50, likes: 1}
`

func writeFixture(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(path, []byte(testFixture), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSeedCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "seed", "add", "Alpha", "@beta", "bad handle!")
	if !strings.Contains(out, "Added 2 seed(s)") || !strings.Contains(out, "Skipped 1 invalid") {
		t.Errorf("unexpected add output: %q", out)
	}

	seedFile := filepath.Join(env.dir, "seeds.txt")
	if err := os.WriteFile(seedFile, []byte("# comment\n\nalpha\ndave\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out = env.mustRun(t, "", "seed", "add", "--file", seedFile, "--from-config")
	if !strings.Contains(out, "Added 2 seed(s)") || !strings.Contains(out, "Skipped 1 already known: alpha") {
		t.Errorf("unexpected file import output: %q", out)
	}

	out = env.mustRun(t, "", "seed", "list")
	for _, h := range []string{"alpha", "beta", "dave", "carol", "4 seed(s)"} {
		if !strings.Contains(out, h) {
			t.Errorf("seed list missing %q: %q", h, out)
		}
	}

	if _, err := env.run(t, "", "seed", "list", "--status", "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := env.run(t, "", "seed", "add"); err == nil {
		t.Error("expected error without handles")
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "config", "set", "max_level", " 2 ")
	if strings.TrimSpace(out) != "max_level = 2" {
		t.Errorf("unexpected set output: %q", out)
	}

	for _, args := range [][]string{
		{"config", "set", "max_level", "abc"},
		{"config", "set", "no_such_key", "1"},
		{"config", "set", "activity_sample_size", "0"},
	} {
		if _, err := env.run(t, "", args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}

	out = env.mustRun(t, "", "config", "set", "activity_sample_size", "9")
	if strings.TrimSpace(out) != "activity_sample_size = 5" {
		t.Errorf("expected sample size to be capped, got %q", out)
	}

	env.mustRun(t, "", "pause")
	out = env.mustRun(t, "", "config", "show")
	if !strings.Contains(out, "script_status") || !strings.Contains(out, "paused") {
		t.Errorf("expected paused status, got %q", out)
	}
	env.mustRun(t, "", "resume")
	out = env.mustRun(t, "", "config", "show")
	if strings.Contains(out, "paused") {
		t.Errorf("expected active status, got %q", out)
	}
	if !strings.Contains(out, "min_followers          500000") {
		t.Errorf("expected default min_followers, got %q", out)
	}
}

func TestIdentityCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "pw\n", "identity", "add", "Scout1")
	if !strings.Contains(out, "Added identity scout1 (active)") {
		t.Errorf("unexpected add output: %q", out)
	}
	out = env.mustRun(t, "", "identity", "add", "--from-config")
	if !strings.Contains(out, "Added identity scout2 (backup)") {
		t.Errorf("unexpected import output: %q", out)
	}
	out = env.mustRun(t, "pw\n", "identity", "add", "scout1")
	if !strings.Contains(out, "already added") {
		t.Errorf("expected duplicate notice, got %q", out)
	}

	if _, err := env.run(t, "", "identity", "add", "scout3"); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := env.run(t, "pw\n", "identity", "add", "scout3", "--from-config"); err == nil {
		t.Error("expected error for handle combined with --from-config")
	}

	out = env.mustRun(t, "", "identity", "list")
	if !strings.Contains(out, "scout1") || !strings.Contains(out, "backup") || !strings.Contains(out, "last_used=never") {
		t.Errorf("unexpected list output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "state", "credential.key")); err != nil {
		t.Errorf("expected key file in state dir: %v", err)
	}

	fixture := writeFixture(t, env.dir)
	out = env.mustRun(t, "", "identity", "check", "--fixture", fixture)
	if !strings.Contains(out, "scout1") || strings.Count(out, "OK") != 2 {
		t.Errorf("unexpected check output: %q", out)
	}

	env.mustRun(t, "", "identity", "set-status", "scout2", "banned")
	if _, err := env.run(t, "", "identity", "set-status", "scout2", "retired"); err == nil {
		t.Error("expected error for unknown identity status")
	}
	out, err := env.run(t, "", "identity", "check", "--fixture", fixture, "scout2")
	if err == nil || !strings.Contains(out, "SKIPPED") {
		t.Errorf("expected banned identity to be skipped, got %q (err %v)", out, err)
	}
}

func TestRunRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	fixture := writeFixture(t, env.dir)

	_, err := env.run(t, "", "run", "--once", "--fixture", fixture)
	if err == nil || !strings.Contains(err.Error(), "no usable identities") {
		t.Errorf("expected no identities error, got %v", err)
	}
}

func TestRunRequiresSourceURL(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "identity", "add", "scout1")

	_, err := env.run(t, "", "run", "--once")
	if err == nil || !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("expected configuration error, got %v", err)
	}
}

// TestRunAndExport crawls the fixture graph end to end and reads the
// result back through every reporting command.
func TestRunAndExport(t *testing.T) {
	env := newTestEnv(t)
	fixture := writeFixture(t, env.dir)

	env.mustRun(t, "pw\n", "identity", "add", "scout1")
	env.mustRun(t, "", "seed", "add", "alpha")
	env.mustRun(t, "", "config", "set", "max_level", "1")

	out := env.mustRun(t, "", "run", "--once", "--fixture", fixture)
	if !strings.Contains(out, "Crawler started") || !strings.Contains(out, "1 passed") || !strings.Contains(out, "1 failed") {
		t.Errorf("unexpected run output: %q", out)
	}

	csvPath := filepath.Join(env.dir, "out", "accepted.csv")
	env.mustRun(t, "", "export", "-o", csvPath)
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d records", len(records))
	}
	row := records[1]
	if row[0] != "alpha" || row[1] != "Alpha" || row[3] != "112000" || row[4] != "2.50" ||
		row[5] != "janedoe" || row[8] != "https://mystore.com" || row[10] != "0" {
		t.Errorf("unexpected export row: %v", row)
	}

	out = env.mustRun(t, "", "stats", "--format", "json")
	var doc report.StatsDocument
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid stats JSON: %v\n%s", err, out)
	}
	if doc.Stats.AcceptedTotal != 1 || doc.Stats.DiscoveredTotal != 1 || doc.Config["max_level"] != "1" {
		t.Errorf("unexpected stats: %+v", doc)
	}

	out = env.mustRun(t, "", "stats", "--format", "markdown")
	if !strings.Contains(out, "# Crawl Statistics") {
		t.Errorf("unexpected markdown stats: %q", out)
	}

	env.mustRun(t, "", "accepted", "note", "@alpha", "emailed", "2026-03-01")
	out = env.mustRun(t, "", "accepted", "list")
	if !strings.Contains(out, "@alpha") || !strings.Contains(out, "notes: emailed 2026-03-01") {
		t.Errorf("unexpected accepted list: %q", out)
	}
	if _, err := env.run(t, "", "accepted", "note", "beta", "x"); err == nil {
		t.Error("expected error annotating a handle that was not accepted")
	}

	out = env.mustRun(t, "", "activity", "-n", "50")
	for _, action := range []string{"processing_started", "account_passed", "batch_complete", "processing_stopped", "seed_added"} {
		if !strings.Contains(out, action) {
			t.Errorf("activity missing %s", action)
		}
	}

	out = env.mustRun(t, "", "requeue")
	if !strings.Contains(out, "Requeued 0 handle(s)") {
		t.Errorf("unexpected requeue output: %q", out)
	}

	if _, err := env.run(t, "", "export", "--format", "xlsx"); err == nil {
		t.Error("expected error for unknown export format")
	}
}
