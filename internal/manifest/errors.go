package manifest

import "errors"

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("required column missing")

	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("file has no header row")

	// ErrInvalidValue is returned when a cell cannot be parsed.
	ErrInvalidValue = errors.New("invalid value")
)
