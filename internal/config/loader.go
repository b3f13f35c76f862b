package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".scoutgraph"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .scoutgraph configuration file.
type File struct {
	Source SourceSection `yaml:"source,omitempty"`
	Pool   PoolSection   `yaml:"pool,omitempty"`
	Retry  RetrySection  `yaml:"retry,omitempty"`
	Loop   LoopSection   `yaml:"loop,omitempty"`

	// Identities are imported into the database by "scoutgraph identity add --from-config".
	// Passwords are sealed on import and never written back.
	Identities []IdentityEntry `yaml:"identities,omitempty"`

	// Seeds are added to the frontier by "scoutgraph seed add --from-config".
	Seeds []string `yaml:"seeds,omitempty"`
}

// SourceSection configures the profile source.
type SourceSection struct {
	BaseURL         string        `yaml:"baseURL,omitempty"`
	UserAgent       string        `yaml:"userAgent,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	Proxy           string        `yaml:"proxy,omitempty"`
	Tor             bool          `yaml:"tor,omitempty"`
	ExpandLinkPages *bool         `yaml:"expandLinkPages,omitempty"`
}

// PoolSection configures the credential pool.
type PoolSection struct {
	HourlyCap      int    `yaml:"hourlyCap,omitempty"`
	SessionBackend string `yaml:"sessionBackend,omitempty"`
	RedisAddr      string `yaml:"redisAddr,omitempty"`
	RedisPassword  string `yaml:"redisPassword,omitempty"`
	RedisDB        int    `yaml:"redisDB,omitempty"`
}

// RetrySection configures remote call retries.
type RetrySection struct {
	MaxRetries     int           `yaml:"maxRetries,omitempty"`
	BaseDelay      time.Duration `yaml:"baseDelay,omitempty"`
	RateLimitDelay time.Duration `yaml:"rateLimitDelay,omitempty"`
}

// LoopSection configures the orchestrator loop.
type LoopSection struct {
	IdleInterval         time.Duration `yaml:"idleInterval,omitempty"`
	InterBatchDelay      time.Duration `yaml:"interBatchDelay,omitempty"`
	ErrorBackoff         time.Duration `yaml:"errorBackoff,omitempty"`
	MaxConsecutiveErrors int           `yaml:"maxConsecutiveErrors,omitempty"`
}

// IdentityEntry is a scraping identity declared in the configuration file.
type IdentityEntry struct {
	Handle   string `yaml:"handle"`
	Password string `yaml:"password"`
	Proxy    string `yaml:"proxy,omitempty"`
	Backup   bool   `yaml:"backup,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .scoutgraph in the current directory
// 3. Look for .scoutgraph in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
