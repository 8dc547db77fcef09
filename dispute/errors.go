package dispute

import "errors"

var (
	ErrNotFound        = errors.New("dispute: not found")
	ErrInvalidArgument = errors.New("dispute: invalid argument")

	// ErrInvariantViolation means required reference data is missing. It
	// is a deployment fault, not a caller fault.
	ErrInvariantViolation = errors.New("dispute: invariant violation")
	ErrConflict           = errors.New("dispute: version conflict")
	ErrInvalidTransition  = errors.New("dispute: invalid status transition")
)
