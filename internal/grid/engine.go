// ============================================================================
// ANX-relative grid segmentation engine
// ============================================================================
//
// Package: internal/grid
// File: engine.go
// Purpose: one engine for every product level (slices, frames). Mission
//          constants are injected through Config.
//
// Components:
//   locator.go    - instant -> cell index / cell bounds
//   classifier.go - caller bounds -> theoretical grid bounds
//   builder.go    - acquisition window -> ordered, edge-adjusted segments
//
// Numerics:
//   Instants are time.Time and spans are time.Duration, both integer
//   nanoseconds. Config values are rounded to the microsecond when loaded,
//   so no drift accumulates across cells. Equality checks use Epsilon.
//
// Errors:
//   The engine never logs or guesses. Every failure is returned to the
//   caller wrapped around one of the sentinels in errors.go.
//
// ============================================================================

package grid

import (
	"fmt"
	"time"

	"github.com/ChuLiYu/procsim/internal/orbit"
)

// Epsilon absorbs rounding noise in every boundary comparison
const Epsilon = time.Millisecond

// Config holds the mission constants for one product level
type Config struct {
	OrbitalPeriod time.Duration // nominal orbit duration
	Spacing       time.Duration // grid cell length
	OverlapStart  time.Duration // lead-in tolerated before a cell boundary
	OverlapEnd    time.Duration // margin appended after each cell
	MinDuration   time.Duration // shortest useful edge segment
}

// Validate checks orbital period > spacing > 0 and non-negative margins
func (c Config) Validate() error {
	switch {
	case c.OrbitalPeriod <= 0:
		return fmt.Errorf("%w: orbital period must be positive, got %s", ErrInvalidConfig, c.OrbitalPeriod)
	case c.Spacing <= 0:
		return fmt.Errorf("%w: spacing must be positive, got %s", ErrInvalidConfig, c.Spacing)
	case c.Spacing >= c.OrbitalPeriod:
		return fmt.Errorf("%w: spacing %s must be shorter than orbital period %s", ErrInvalidConfig, c.Spacing, c.OrbitalPeriod)
	case c.OverlapStart < 0 || c.OverlapEnd < 0:
		return fmt.Errorf("%w: overlaps must not be negative", ErrInvalidConfig)
	case c.MinDuration < 0:
		return fmt.Errorf("%w: minimum duration must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CellsPerOrbit returns round(OrbitalPeriod / Spacing)
func (c Config) CellsPerOrbit() int {
	return int((c.OrbitalPeriod + c.Spacing/2) / c.Spacing)
}

// Engine segments time against one ANX table and one set of constants
type Engine struct {
	cfg   Config
	table *orbit.Table
}

// New validates cfg against table and returns an engine. The table's period
// must equal cfg.OrbitalPeriod, since extrapolated entries are spaced by it.
func New(cfg Config, table *orbit.Table) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil orbit table", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table.Period() != cfg.OrbitalPeriod {
		return nil, fmt.Errorf("%w: orbit table period %s differs from configured %s",
			ErrInvalidConfig, table.Period(), cfg.OrbitalPeriod)
	}
	return &Engine{cfg: cfg, table: table}, nil
}

// Config returns the engine's constants
func (e *Engine) Config() Config {
	return e.cfg
}

// Table returns the engine's orbit table
func (e *Engine) Table() *orbit.Table {
	return e.table
}

func within(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -Epsilon && d < Epsilon
}

func nearly(a, b time.Duration) bool {
	d := a - b
	return d > -Epsilon && d < Epsilon
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
