package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidHourlyCap is returned when the per-identity hourly cap is not positive.
	ErrInvalidHourlyCap = errors.New("invalid hourly cap: must be positive")

	// ErrInvalidMaxRetries is returned when max retries is not positive.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be positive")

	// ErrInvalidDelay is returned when a delay or interval is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidErrorThreshold is returned when the consecutive error threshold is not positive.
	ErrInvalidErrorThreshold = errors.New("invalid consecutive error threshold: must be positive")

	// ErrUnknownSessionBackend is returned for a session backend other than file or redis.
	ErrUnknownSessionBackend = errors.New("unknown session backend: use file or redis")

	// ErrMissingRedisAddr is returned when the redis backend has no address.
	ErrMissingRedisAddr = errors.New("redis session backend requires an address")

	// ErrConflictingEgress is returned when both --tor and --proxy are given.
	ErrConflictingEgress = errors.New("conflicting egress: --tor and --proxy cannot be used together")

	// ErrNoSourceURL is returned by ValidateForRun when no source base URL is configured.
	ErrNoSourceURL = errors.New("no profile source configured: set source.baseURL or --source-url")
)

// Runtime configuration errors returned by ParseRunConfig and RunConfig.Set.
var (
	// ErrUnknownRunKey is returned for a key that RunConfig does not know.
	ErrUnknownRunKey = errors.New("unknown runtime config key")

	// ErrInvalidRunValue is returned when a value cannot be parsed or is out of range.
	ErrInvalidRunValue = errors.New("invalid runtime config value")
)
