package solver

import "errors"

var (
	// ErrUnresolved means no trial reached the minimum inlier count. Callers
	// treat the window/prime as structureless; it is not fatal.
	ErrUnresolved = errors.New("solver: unresolved")

	// ErrInvalidDegree rejects degree bounds outside 1..MaxDegree.
	ErrInvalidDegree = errors.New("solver: invalid degree bound")

	ErrInvalidConfig = errors.New("solver: invalid config")
)
