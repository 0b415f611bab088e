package exercise

import "errors"

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrInvalidConfig  = errors.New("invalid exercise config")
	ErrLoadConfig     = errors.New("load exercise config failed")
	ErrPredicatePanic = errors.New("predicate panicked")
)
