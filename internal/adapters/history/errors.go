package history

import "errors"

// Sentinel kinds for history errors.
var (
	ErrNotFound = errors.New("rep not found")
	ErrEmpty    = errors.New("no reps recorded")
)
