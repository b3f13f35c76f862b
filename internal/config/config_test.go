package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig documents the defaults through tests so that changes to
// defaults are intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default HourlyCap is 50", func(t *testing.T) {
		t.Parallel()
		if cfg.HourlyCap != 50 {
			t.Errorf("expected HourlyCap to be 50, got %d", cfg.HourlyCap)
		}
	})

	t.Run("default retry policy is 3 attempts with 5s and 10s units", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRetries != 3 {
			t.Errorf("expected MaxRetries to be 3, got %d", cfg.MaxRetries)
		}
		if cfg.BaseDelay != 5*time.Second {
			t.Errorf("expected BaseDelay to be 5s, got %v", cfg.BaseDelay)
		}
		if cfg.RateLimitDelay != 10*time.Second {
			t.Errorf("expected RateLimitDelay to be 10s, got %v", cfg.RateLimitDelay)
		}
	})

	t.Run("default loop intervals", func(t *testing.T) {
		t.Parallel()
		if cfg.IdleInterval != 30*time.Second {
			t.Errorf("expected IdleInterval to be 30s, got %v", cfg.IdleInterval)
		}
		if cfg.InterBatchDelay != 5*time.Second {
			t.Errorf("expected InterBatchDelay to be 5s, got %v", cfg.InterBatchDelay)
		}
		if cfg.ErrorBackoff != 10*time.Second {
			t.Errorf("expected ErrorBackoff to be 10s, got %v", cfg.ErrorBackoff)
		}
		if cfg.MaxConsecutiveErrors != 5 {
			t.Errorf("expected MaxConsecutiveErrors to be 5, got %d", cfg.MaxConsecutiveErrors)
		}
	})

	t.Run("default session backend is file", func(t *testing.T) {
		t.Parallel()
		if cfg.SessionBackend != SessionBackendFile {
			t.Errorf("expected SessionBackend to be file, got %q", cfg.SessionBackend)
		}
	})

	t.Run("defaults validate", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero hourly cap", mutate: func(c *Config) { c.HourlyCap = 0 }, wantErr: ErrInvalidHourlyCap},
		{name: "zero retries", mutate: func(c *Config) { c.MaxRetries = 0 }, wantErr: ErrInvalidMaxRetries},
		{name: "negative delay", mutate: func(c *Config) { c.BaseDelay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "zero threshold", mutate: func(c *Config) { c.MaxConsecutiveErrors = 0 }, wantErr: ErrInvalidErrorThreshold},
		{name: "unknown backend", mutate: func(c *Config) { c.SessionBackend = "etcd" }, wantErr: ErrUnknownSessionBackend},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.SessionBackend = SessionBackendRedis
				c.RedisAddr = ""
			},
			wantErr: ErrMissingRedisAddr,
		},
		{
			name: "tor and proxy",
			mutate: func(c *Config) {
				c.UseTor = true
				c.ProxyURL = "socks5://127.0.0.1:1080"
			},
			wantErr: ErrConflictingEgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateForRun(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if err := cfg.ValidateForRun(); !errors.Is(err, ErrNoSourceURL) {
		t.Fatalf("expected ErrNoSourceURL, got %v", err)
	}
	cfg.SourceBaseURL = "https://profiles.example.net"
	if err := cfg.ValidateForRun(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("source: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("full file applies to config", func(t *testing.T) {
		t.Parallel()
		content := `source:
  baseURL: https://profiles.example.net
  userAgent: test-agent
  timeout: 45s
  proxy: socks5://127.0.0.1:1080
  expandLinkPages: false
pool:
  hourlyCap: 20
  sessionBackend: redis
  redisAddr: 10.0.0.5:6379
retry:
  maxRetries: 4
  baseDelay: 1s
  rateLimitDelay: 2s
loop:
  idleInterval: 1m
  maxConsecutiveErrors: 7
identities:
  - handle: scout_one
    password: hunter2
seeds:
  - alpha
  - "@Beta"
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error: %v", err)
		}
		cfg := NewConfig()
		cfg.ApplyFile(f)

		if cfg.SourceBaseURL != "https://profiles.example.net" {
			t.Errorf("SourceBaseURL = %q", cfg.SourceBaseURL)
		}
		if cfg.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.ExpandLinkPages {
			t.Error("ExpandLinkPages should be false")
		}
		if cfg.HourlyCap != 20 || cfg.SessionBackend != SessionBackendRedis || cfg.RedisAddr != "10.0.0.5:6379" {
			t.Errorf("pool section not applied: %+v", cfg)
		}
		if cfg.MaxRetries != 4 || cfg.BaseDelay != time.Second || cfg.RateLimitDelay != 2*time.Second {
			t.Errorf("retry section not applied: %+v", cfg)
		}
		if cfg.IdleInterval != time.Minute || cfg.MaxConsecutiveErrors != 7 {
			t.Errorf("loop section not applied: %+v", cfg)
		}
		if cfg.InterBatchDelay != DefaultInterBatchDelay {
			t.Errorf("unset InterBatchDelay should keep default, got %v", cfg.InterBatchDelay)
		}
		if len(f.Identities) != 1 || f.Identities[0].Handle != "scout_one" {
			t.Errorf("identities = %+v", f.Identities)
		}
		if len(f.Seeds) != 2 {
			t.Errorf("seeds = %v", f.Seeds)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"state":  XDGStateDir(),
	} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q should end with %q", name, dir, AppName)
		}
	}

	cfg := NewConfig()
	cfg.StateDir = "/tmp/sg"
	if cfg.SessionDir() != filepath.Join("/tmp/sg", "sessions") {
		t.Errorf("SessionDir() = %q", cfg.SessionDir())
	}
	if cfg.KeyFile() != filepath.Join("/tmp/sg", "credential.key") {
		t.Errorf("KeyFile() = %q", cfg.KeyFile())
	}
}
