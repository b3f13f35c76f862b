package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Runtime configuration keys stored in the run_config table.
const (
	KeyConcurrentLimit     = "concurrent_limit"
	KeyMaxLevel            = "max_level"
	KeyMinFollowers        = "min_followers"
	KeyMinAvgViews         = "min_avg_views"
	KeyMinEngagementRate   = "min_engagement_rate"
	KeyScriptStatus        = "script_status"
	KeyFollowingFetchLimit = "following_fetch_limit"
	KeyActivitySampleSize  = "activity_sample_size"
)

// Values of the script_status key.
const (
	ScriptActive = "active"
	ScriptPaused = "paused"
)

// Runtime configuration defaults.
const (
	DefaultConcurrentLimit     = 5
	DefaultMaxLevel            = 4
	DefaultMinFollowers        = 500000
	DefaultMinAvgViews         = 100000
	DefaultMinEngagementRate   = 2.0
	DefaultFollowingFetchLimit = 100
	DefaultActivitySampleSize  = 5

	// MaxActivitySampleSize is the largest number of recent items averaged.
	MaxActivitySampleSize = 5
)

// RunConfig is an immutable snapshot of the runtime configuration.
// The orchestrator reads a fresh snapshot at the start of every iteration.
type RunConfig struct {
	ConcurrentLimit     int
	MaxLevel            int
	MinFollowers        int64
	MinAvgViews         int64
	MinEngagementRate   float64
	Paused              bool
	FollowingFetchLimit int
	ActivitySampleSize  int
}

// DefaultRunConfig returns the runtime configuration used for missing keys.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ConcurrentLimit:     DefaultConcurrentLimit,
		MaxLevel:            DefaultMaxLevel,
		MinFollowers:        DefaultMinFollowers,
		MinAvgViews:         DefaultMinAvgViews,
		MinEngagementRate:   DefaultMinEngagementRate,
		FollowingFetchLimit: DefaultFollowingFetchLimit,
		ActivitySampleSize:  DefaultActivitySampleSize,
	}
}

// DefaultRunValues returns the default key/value rows seeded into a new database.
func DefaultRunValues() map[string]string {
	return DefaultRunConfig().Values()
}

// RunKeys returns every known runtime key in sorted order.
func RunKeys() []string {
	keys := make([]string, 0, len(runSetters))
	for k := range runSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseRunConfig builds a snapshot from stored key/value rows.
// Missing keys take their defaults. Unknown keys are ignored so older
// binaries can read databases written by newer ones.
func ParseRunConfig(values map[string]string) (RunConfig, error) {
	rc := DefaultRunConfig()
	for key, raw := range values {
		set, ok := runSetters[key]
		if !ok {
			continue
		}
		if err := set(&rc, strings.TrimSpace(raw)); err != nil {
			return RunConfig{}, fmt.Errorf("%s=%q: %w", key, raw, err)
		}
	}
	return rc, nil
}

// NormalizeRunValue validates a single key/value pair and returns the
// canonical string to store.
func NormalizeRunValue(key, raw string) (string, error) {
	set, ok := runSetters[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRunKey, key)
	}
	rc := DefaultRunConfig()
	if err := set(&rc, strings.TrimSpace(raw)); err != nil {
		return "", fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return rc.Values()[key], nil
}

// Values renders the snapshot as key/value rows.
func (rc RunConfig) Values() map[string]string {
	status := ScriptActive
	if rc.Paused {
		status = ScriptPaused
	}
	return map[string]string{
		KeyConcurrentLimit:     strconv.Itoa(rc.ConcurrentLimit),
		KeyMaxLevel:            strconv.Itoa(rc.MaxLevel),
		KeyMinFollowers:        strconv.FormatInt(rc.MinFollowers, 10),
		KeyMinAvgViews:         strconv.FormatInt(rc.MinAvgViews, 10),
		KeyMinEngagementRate:   strconv.FormatFloat(rc.MinEngagementRate, 'f', -1, 64),
		KeyScriptStatus:        status,
		KeyFollowingFetchLimit: strconv.Itoa(rc.FollowingFetchLimit),
		KeyActivitySampleSize:  strconv.Itoa(rc.ActivitySampleSize),
	}
}

type runSetter func(rc *RunConfig, raw string) error

var runSetters = map[string]runSetter{
	KeyConcurrentLimit: func(rc *RunConfig, raw string) error {
		n, err := parsePositiveInt(raw)
		rc.ConcurrentLimit = n
		return err
	},
	KeyMaxLevel: func(rc *RunConfig, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ErrInvalidRunValue
		}
		rc.MaxLevel = n
		return nil
	},
	KeyMinFollowers: func(rc *RunConfig, raw string) error {
		n, err := parseNonNegativeInt64(raw)
		rc.MinFollowers = n
		return err
	},
	KeyMinAvgViews: func(rc *RunConfig, raw string) error {
		n, err := parseNonNegativeInt64(raw)
		rc.MinAvgViews = n
		return err
	},
	KeyMinEngagementRate: func(rc *RunConfig, raw string) error {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidRunValue
		}
		rc.MinEngagementRate = f
		return nil
	},
	KeyScriptStatus: func(rc *RunConfig, raw string) error {
		switch strings.ToLower(raw) {
		case ScriptActive:
			rc.Paused = false
		case ScriptPaused:
			rc.Paused = true
		default:
			return ErrInvalidRunValue
		}
		return nil
	},
	KeyFollowingFetchLimit: func(rc *RunConfig, raw string) error {
		n, err := parsePositiveInt(raw)
		rc.FollowingFetchLimit = n
		return err
	},
	KeyActivitySampleSize: func(rc *RunConfig, raw string) error {
		n, err := parsePositiveInt(raw)
		if err != nil {
			return err
		}
		if n > MaxActivitySampleSize {
			n = MaxActivitySampleSize
		}
		rc.ActivitySampleSize = n
		return nil
	},
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidRunValue
	}
	return n, nil
}

func parseNonNegativeInt64(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidRunValue
	}
	return n, nil
}
