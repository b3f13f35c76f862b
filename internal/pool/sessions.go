package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists serialized sessions keyed by identity handle.
type SessionStore interface {
	// Load returns ErrNoSession when nothing is stored for identity.
	Load(ctx context.Context, identity string) ([]byte, error)
	Save(ctx context.Context, identity string, state []byte) error
	Delete(ctx context.Context, identity string) error
}

// MemorySessionStore keeps sessions for the lifetime of the process.
type MemorySessionStore struct {
	mu    sync.Mutex
	state map[string][]byte
}

// NewMemorySessionStore returns an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{state: make(map[string][]byte)}
}

// Load implements SessionStore.
func (m *MemorySessionStore) Load(_ context.Context, identity string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state[identity]
	if !ok {
		return nil, ErrNoSession
	}
	return append([]byte(nil), b...), nil
}

// Save implements SessionStore.
func (m *MemorySessionStore) Save(_ context.Context, identity string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[identity] = append([]byte(nil), state...)
	return nil
}

// Delete implements SessionStore.
func (m *MemorySessionStore) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, identity)
	return nil
}

// unsafeFileChars matches characters that are replaced in session file names.
var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileSessionStore keeps one JSON file per identity in a directory.
// Files are created with mode 0600.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore creates dir if needed and returns a store over it.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileSessionStore{dir: dir}, nil
}

func (f *FileSessionStore) path(identity string) string {
	name := unsafeFileChars.ReplaceAllString(identity, "_")
	return filepath.Join(f.dir, name+".session.json")
}

// Load implements SessionStore.
func (f *FileSessionStore) Load(_ context.Context, identity string) ([]byte, error) {
	b, err := os.ReadFile(f.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return b, nil
}

// Save implements SessionStore. The file is replaced atomically.
func (f *FileSessionStore) Save(_ context.Context, identity string, state []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if _, err := tmp.Write(state); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(identity)); err != nil {
		return fmt.Errorf("failed to store session file: %w", err)
	}
	return nil
}

// Delete implements SessionStore.
func (f *FileSessionStore) Delete(_ context.Context, identity string) error {
	err := os.Remove(f.path(identity))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// RedisKeyPrefix prefixes every key written by RedisSessionStore.
const RedisKeyPrefix = "scoutgraph:session:"

// RedisSessionStore keeps sessions in Redis so several scoutgraph
// processes can share logins.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore returns a store over client. A positive ttl expires
// sessions that were not saved again within it.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// DialRedis connects to addr, which is either host:port or a redis:// URL,
// and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: addr, Password: password, DB: db}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}
	return client, nil
}

// Load implements SessionStore.
func (r *RedisSessionStore) Load(ctx context.Context, identity string) ([]byte, error) {
	b, err := r.client.Get(ctx, RedisKeyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}
	return b, nil
}

// Save implements SessionStore.
func (r *RedisSessionStore) Save(ctx context.Context, identity string, state []byte) error {
	if err := r.client.Set(ctx, RedisKeyPrefix+identity, state, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Delete implements SessionStore.
func (r *RedisSessionStore) Delete(ctx context.Context, identity string) error {
	if err := r.client.Del(ctx, RedisKeyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
