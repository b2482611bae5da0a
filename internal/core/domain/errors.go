package domain

import "errors"

var (
	// ErrSourceUnavailable marks a transient failure to read tenant state.
	ErrSourceUnavailable = errors.New("tenant source unavailable")
	// ErrWriteFailure marks a filesystem failure while publishing zones.
	ErrWriteFailure = errors.New("zone write failed")
	// ErrInvalidConfig marks a configuration problem detected at startup.
	ErrInvalidConfig = errors.New("invalid configuration")
)
