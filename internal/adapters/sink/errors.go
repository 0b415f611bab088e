package sink

import "errors"

// Sentinel kinds for sink errors.
var (
	ErrShutdownTimeout = errors.New("dispatcher shutdown timed out")
)
