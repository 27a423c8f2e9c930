package dlog

import "errors"

var (
	// ErrNotFound is returned by Solve when the target has no discrete
	// logarithm within the range the solver was built for.
	ErrNotFound = errors.New("target outside the solvable range")

	// ErrTableMismatch is returned when a precomputed table does not belong
	// to the group, range or parameters of the engine loading it.
	ErrTableMismatch = errors.New("table does not match the engine parameters")

	// ErrInvalidConfig is returned by engine constructors for parameter
	// combinations that cannot work.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrGroupOperation is returned when the underlying group rejects an
	// operation, typically a decompression of a corrupted key.
	ErrGroupOperation = errors.New("group operation failed")
)
