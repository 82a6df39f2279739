package orbit

import "errors"

var (
	// ErrNoANX means the query instant precedes every known ANX and the
	// table does not extrapolate backward
	ErrNoANX = errors.New("orbit: no ANX at or before instant")

	// ErrEmptyTable means no ANX instant was supplied
	ErrEmptyTable = errors.New("orbit: ANX table is empty")

	// ErrInvalidPeriod means the orbital period is not positive
	ErrInvalidPeriod = errors.New("orbit: orbital period must be positive")

	// ErrExtrapolationLimit means covering the interval would need more
	// extrapolated entries than MaxExtrapolated
	ErrExtrapolationLimit = errors.New("orbit: extrapolation limit exceeded")

	// ErrNoStateVectors means the orbit file contained no usable OSV
	ErrNoStateVectors = errors.New("orbit: no state vectors in orbit file")
)
