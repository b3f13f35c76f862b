package pool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"
)

func TestFileSessionStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "sessions")
	store, err := NewFileSessionStore(dir)
	if err != nil {
		t.Fatalf("NewFileSessionStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, "scout1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() of missing session error = %v, want ErrNoSession", err)
	}

	state := []byte(`{"handle":"scout1","token":"t"}`)
	if err := store.Save(ctx, "scout1", state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx, "scout1")
	if err != nil || string(got) != string(state) {
		t.Errorf("Load() = %s, %v", got, err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.path("scout1"))
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("session file mode = %o, want 600", perm)
		}
	}

	if err := store.Save(ctx, "scout1", []byte("v2")); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	if got, _ := store.Load(ctx, "scout1"); string(got) != "v2" {
		t.Errorf("Load() after overwrite = %s", got)
	}

	if err := store.Delete(ctx, "scout1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "scout1"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestFileSessionStorePathIsConfined(t *testing.T) {
	t.Parallel()

	store, err := NewFileSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSessionStore() error = %v", err)
	}
	p := store.path("../../etc/passwd")
	if filepath.Dir(p) != store.dir {
		t.Errorf("path escaped store dir: %s", p)
	}
}

// TestRedisSessionStore runs against a real server when
// SCOUTGRAPH_TEST_REDIS_ADDR is set.
func TestRedisSessionStore(t *testing.T) {
	t.Parallel()

	addr := os.Getenv("SCOUTGRAPH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCOUTGRAPH_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := DialRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("DialRedis() error = %v", err)
	}
	defer client.Close()

	store := NewRedisSessionStore(client, time.Minute)
	id := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer store.Delete(ctx, id) //nolint:errcheck // cleanup

	if _, err := store.Load(ctx, id); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() of missing session error = %v", err)
	}
	if err := store.Save(ctx, id, []byte("state")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, err := store.Load(ctx, id); err != nil || string(got) != "state" {
		t.Errorf("Load() = %s, %v", got, err)
	}
	if ttl := client.TTL(ctx, RedisKeyPrefix+id).Val(); ttl <= 0 {
		t.Errorf("TTL = %v, want positive", ttl)
	}
}

func TestMemorySessionStore(t *testing.T) {
	t.Parallel()

	store := NewMemorySessionStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = store.Save(ctx, "a", buf)
	buf[0] = 'x'
	if got, _ := store.Load(ctx, "a"); string(got) != "abc" {
		t.Errorf("store kept a reference to the caller's buffer: %s", got)
	}
	_ = store.Delete(ctx, "a")
	if _, err := store.Load(ctx, "a"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() after Delete error = %v", err)
	}
}
