package disambiguation

import "errors"

var (
	// ErrSignalUnavailable is returned when the query embedding cannot be computed.
	// Per-candidate signal failures never surface as errors; they are substituted.
	ErrSignalUnavailable = errors.New("signal unavailable")

	// ErrInvalidEntity is returned for an entity descriptor that fails validation
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidSettings is returned when settings fail validation
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrInvalidLimit is returned for a history limit outside [1, MaxHistoryLimit]
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrNotConfigured is returned by operations whose collaborator was not wired
	ErrNotConfigured = errors.New("not configured")
)
