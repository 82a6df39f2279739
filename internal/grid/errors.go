package grid

import "errors"

var (
	// ErrInvalidConfig reports inconsistent mission constants; raised at
	// construction, never mid-computation
	ErrInvalidConfig = errors.New("grid: invalid configuration")

	// ErrUnalignable means no grid bounds could be derived for a slice
	ErrUnalignable = errors.New("grid: cannot determine slice bounds")

	// ErrDegenerateWindow means stop is not after start
	ErrDegenerateWindow = errors.New("grid: window stop must be after start")

	// ErrWindowTooShort means the acquisition cannot yield a segment of at
	// least the minimum duration
	ErrWindowTooShort = errors.New("grid: acquisition shorter than minimum duration")
)
