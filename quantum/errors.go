package quantum

import "errors"

// Sentinel errors for the engine. Callers are expected to test with
// errors.Is; everything is returned to the immediate caller and nothing is
// retried internally.
var (
	// ErrNotFound indicates an unknown state or circuit id.
	ErrNotFound = errors.New("quantum: not found")

	// ErrInvalidOperation indicates a qubit index out of range or a
	// malformed gate target list.
	ErrInvalidOperation = errors.New("quantum: invalid operation")

	// ErrResourceExceeded indicates a requested qubit count over the
	// configured maximum.
	ErrResourceExceeded = errors.New("quantum: resource exceeded")

	// ErrNumericalDrift indicates that amplitude normalization failed beyond
	// tolerance after a gate. This is an engine bug, not a recoverable
	// condition.
	ErrNumericalDrift = errors.New("quantum: numerical drift")
)
