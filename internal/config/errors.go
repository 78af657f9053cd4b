package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoOccurrences is returned when no occurrences file is given.
	ErrNoOccurrences = errors.New("no occurrences file specified: use --occurrences")

	// ErrInputNotFound is returned when an input file does not exist.
	ErrInputNotFound = errors.New("input file not found")

	// ErrNoStoreDir is returned when the asset directory is empty.
	ErrNoStoreDir = errors.New("no store directory specified: use --store")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidBackoff is returned when the backoff base is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidWindow is returned when --limit or --start-index is negative.
	ErrInvalidWindow = errors.New("invalid worklist window: limit and start index must be non-negative")

	// ErrInvalidSnapshot is returned when a pinned snapshot timestamp is not
	// 1 to 14 digits.
	ErrInvalidSnapshot = errors.New("invalid archive snapshot: expected a YYYYMMDDhhmmss timestamp")

	// ErrOutputNotWritable is returned by PrepareOutputs when an output file
	// could not be created in its directory.
	ErrOutputNotWritable = errors.New("output location is not writable")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
