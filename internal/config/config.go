package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "scoutgraph"

	// DefaultTimeout is the per-request timeout for the profile source.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies scoutgraph in HTTP requests.
	DefaultUserAgent = "scoutgraph/1.0 (+https://github.com/nao1215/scoutgraph)"

	// DefaultHourlyCap is the number of successful calls one identity may
	// make in any trailing hour.
	DefaultHourlyCap = 50

	// DefaultMaxRetries is the number of attempts per remote call.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is multiplied by the attempt number after a transient error.
	DefaultBaseDelay = 5 * time.Second

	// DefaultRateLimitDelay is multiplied by the attempt number after a rate limit.
	DefaultRateLimitDelay = 10 * time.Second

	// DefaultIdleInterval is the sleep when the frontier is empty or the run is paused.
	DefaultIdleInterval = 30 * time.Second

	// DefaultInterBatchDelay is the pause between two successful batches.
	DefaultInterBatchDelay = 5 * time.Second

	// DefaultErrorBackoff is multiplied by the consecutive error count.
	DefaultErrorBackoff = 10 * time.Second

	// DefaultMaxConsecutiveErrors stops the orchestrator after this many
	// failed iterations in a row.
	DefaultMaxConsecutiveErrors = 5

	// DefaultSessionBackend stores sessions as files under the XDG state dir.
	DefaultSessionBackend = SessionBackendFile

	// DefaultRedisAddr is used when the redis session backend is selected
	// without an explicit address.
	DefaultRedisAddr = "127.0.0.1:6379"

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultLinkPageMaxBytes limits link-in-bio pages read by the extractor.
	DefaultLinkPageMaxBytes = 1 * 1024 * 1024
)

// Session storage backends.
const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

// Config holds the process configuration for scoutgraph.
// It is populated from CLI flags and the configuration file and passed
// through the application explicitly rather than through global state.
type Config struct {
	// Verbose enables debug level logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. When empty the
	// file is searched in the current directory and then the home directory.
	ConfigFilePath string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// StateDir holds persisted sessions and the credential key.
	// Defaults to the XDG state directory.
	StateDir string

	// SourceBaseURL is the base URL of the HTTP profile source.
	SourceBaseURL string

	// UserAgent is sent with every source request.
	UserAgent string

	// Timeout is the per-request timeout for the profile source.
	Timeout time.Duration

	// ProxyURL routes source traffic through a SOCKS5 or HTTP proxy.
	ProxyURL string

	// UseTor starts an embedded Tor daemon and routes source traffic through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// HourlyCap is the per-identity limit of successful calls per trailing hour.
	HourlyCap int

	// SessionBackend is "file" or "redis".
	SessionBackend string

	// RedisAddr is the address of the redis server for the redis backend.
	RedisAddr string

	// RedisPassword authenticates against the redis server.
	RedisPassword string

	// RedisDB selects the redis logical database.
	RedisDB int

	// MaxRetries is the number of attempts per remote call.
	MaxRetries int

	// BaseDelay is the transient-error backoff unit.
	BaseDelay time.Duration

	// RateLimitDelay is the rate-limit backoff unit.
	RateLimitDelay time.Duration

	// IdleInterval is the sleep when the frontier is empty or paused.
	IdleInterval time.Duration

	// InterBatchDelay is the pause between successful batches.
	InterBatchDelay time.Duration

	// ErrorBackoff is the backoff unit after a failed iteration.
	ErrorBackoff time.Duration

	// MaxConsecutiveErrors stops the run after this many failed iterations.
	MaxConsecutiveErrors int

	// ExpandLinkPages fetches link-in-bio aggregator pages of accepted
	// candidates to find more contact channels.
	ExpandLinkPages bool

	// File is the parsed configuration file, nil when none was found.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBDir:                XDGDataDir(),
		StateDir:             XDGStateDir(),
		UserAgent:            DefaultUserAgent,
		Timeout:              DefaultTimeout,
		TorStartupTimeout:    DefaultTorStartupTimeout,
		HourlyCap:            DefaultHourlyCap,
		SessionBackend:       DefaultSessionBackend,
		RedisAddr:            DefaultRedisAddr,
		MaxRetries:           DefaultMaxRetries,
		BaseDelay:            DefaultBaseDelay,
		RateLimitDelay:       DefaultRateLimitDelay,
		IdleInterval:         DefaultIdleInterval,
		InterBatchDelay:      DefaultInterBatchDelay,
		ErrorBackoff:         DefaultErrorBackoff,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		ExpandLinkPages:      true,
	}
}

// XDGDataDir returns the XDG data directory for scoutgraph.
// On Linux: ~/.local/share/scoutgraph
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scoutgraph.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory for scoutgraph.
// On Linux: ~/.local/state/scoutgraph
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// SessionDir returns the directory holding file-backed sessions.
func (c *Config) SessionDir() string {
	return filepath.Join(c.StateDir, "sessions")
}

// KeyFile returns the path of the credential sealing key.
func (c *Config) KeyFile() string {
	return filepath.Join(c.StateDir, "credential.key")
}

// ApplyFile merges values from the configuration file into c.
// Zero values in the file leave the current setting untouched.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	if f.Source.BaseURL != "" {
		c.SourceBaseURL = f.Source.BaseURL
	}
	if f.Source.UserAgent != "" {
		c.UserAgent = f.Source.UserAgent
	}
	if f.Source.Timeout > 0 {
		c.Timeout = f.Source.Timeout
	}
	if f.Source.Proxy != "" {
		c.ProxyURL = f.Source.Proxy
	}
	if f.Source.Tor {
		c.UseTor = true
	}
	if f.Source.ExpandLinkPages != nil {
		c.ExpandLinkPages = *f.Source.ExpandLinkPages
	}

	if f.Pool.HourlyCap > 0 {
		c.HourlyCap = f.Pool.HourlyCap
	}
	if f.Pool.SessionBackend != "" {
		c.SessionBackend = f.Pool.SessionBackend
	}
	if f.Pool.RedisAddr != "" {
		c.RedisAddr = f.Pool.RedisAddr
	}
	if f.Pool.RedisPassword != "" {
		c.RedisPassword = f.Pool.RedisPassword
	}
	if f.Pool.RedisDB > 0 {
		c.RedisDB = f.Pool.RedisDB
	}

	if f.Retry.MaxRetries > 0 {
		c.MaxRetries = f.Retry.MaxRetries
	}
	if f.Retry.BaseDelay > 0 {
		c.BaseDelay = f.Retry.BaseDelay
	}
	if f.Retry.RateLimitDelay > 0 {
		c.RateLimitDelay = f.Retry.RateLimitDelay
	}

	if f.Loop.IdleInterval > 0 {
		c.IdleInterval = f.Loop.IdleInterval
	}
	if f.Loop.InterBatchDelay > 0 {
		c.InterBatchDelay = f.Loop.InterBatchDelay
	}
	if f.Loop.ErrorBackoff > 0 {
		c.ErrorBackoff = f.Loop.ErrorBackoff
	}
	if f.Loop.MaxConsecutiveErrors > 0 {
		c.MaxConsecutiveErrors = f.Loop.MaxConsecutiveErrors
	}
}

// Validate checks if the configuration is valid.
// The first problem found is returned.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.HourlyCap <= 0 {
		return ErrInvalidHourlyCap
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}
	if c.BaseDelay < 0 || c.RateLimitDelay < 0 || c.IdleInterval < 0 ||
		c.InterBatchDelay < 0 || c.ErrorBackoff < 0 {
		return ErrInvalidDelay
	}
	if c.MaxConsecutiveErrors <= 0 {
		return ErrInvalidErrorThreshold
	}
	switch c.SessionBackend {
	case SessionBackendFile:
	case SessionBackendRedis:
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrUnknownSessionBackend
	}
	if c.UseTor && c.ProxyURL != "" {
		return ErrConflictingEgress
	}
	return nil
}

// ValidateForRun additionally requires what a crawl run needs.
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SourceBaseURL == "" {
		return ErrNoSourceURL
	}
	return nil
}
