// ============================================================================
// Orbit Reference Table
// ============================================================================
//
// Package: internal/orbit
// File: table.go
// Purpose: ordered set of known ANX (Ascending Node Crossing) instants
//
// Lookup:
//   NearestPrecedingANX(t) binary-searches for the greatest entry <= t.
//   An entry equal to t is its own answer (cells are closed on the left).
//
// Extrapolation:
//   ExtendToCover(start, end) prepends first-period / appends last+period
//   until [start, end] lies inside the table. Existing entries are never
//   removed or reordered. A table built with Extrapolate=true extends
//   itself on demand during lookups, in both directions.
//
// Concurrency:
//   Readers take the read lock. Extension builds a new slice and swaps it
//   in under the write lock, so a reader never sees a half-extended list.
//
// ============================================================================

package orbit

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MaxExtrapolated bounds how many entries a single extension may add
const MaxExtrapolated = 1_000_000

// Config describes how a Table is built
type Config struct {
	ANX         []time.Time   // known ANX instants, any order, duplicates allowed
	Period      time.Duration // nominal orbital period
	Extrapolate bool          // extend on demand during lookups
	FirstOrbit  int           // absolute orbit number of the earliest ANX in ANX
}

// Table is the Orbit Reference Table
type Table struct {
	mu          sync.RWMutex
	anx         []time.Time // strictly ascending, UTC
	period      time.Duration
	extrapolate bool
	firstOrbit  int // absolute orbit number of anx[0]
}

// NewTable validates cfg and returns a table holding the sorted,
// deduplicated ANX list
func NewTable(cfg Config) (*Table, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidPeriod, cfg.Period)
	}
	if len(cfg.ANX) == 0 {
		return nil, ErrEmptyTable
	}

	sorted := make([]time.Time, len(cfg.ANX))
	for i, t := range cfg.ANX {
		sorted[i] = t.UTC()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	anx := sorted[:1]
	for _, t := range sorted[1:] {
		if t.Equal(anx[len(anx)-1]) {
			continue
		}
		anx = append(anx, t)
	}

	return &Table{
		anx:         anx,
		period:      cfg.Period,
		extrapolate: cfg.Extrapolate,
		firstOrbit:  cfg.FirstOrbit,
	}, nil
}

// Period returns the nominal orbital period
func (t *Table) Period() time.Duration {
	return t.period
}

// Extrapolates reports whether lookups extend the table on demand
func (t *Table) Extrapolates() bool {
	return t.extrapolate
}

// Len returns the number of entries, extrapolated ones included
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.anx)
}

// Entries returns a copy of the current entries
func (t *Table) Entries() []time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]time.Time, len(t.anx))
	copy(out, t.anx)
	return out
}

// Span returns the first and last entries
func (t *Table) Span() (time.Time, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.anx[0], t.anx[len(t.anx)-1]
}

// NearestPrecedingANX returns the greatest entry <= at
func (t *Table) NearestPrecedingANX(at time.Time) (time.Time, error) {
	anx, _, err := t.locate(at)
	return anx, err
}

// AbsoluteOrbit returns the absolute orbit number of the orbit containing at
func (t *Table) AbsoluteOrbit(at time.Time) (int, error) {
	_, orbit, err := t.locate(at)
	return orbit, err
}

func (t *Table) locate(at time.Time) (time.Time, int, error) {
	if t.extrapolate {
		if err := t.ExtendToCover(at, at); err != nil {
			return time.Time{}, 0, err
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	// first entry strictly after at; the one before it is the answer
	i := sort.Search(len(t.anx), func(i int) bool { return t.anx[i].After(at) })
	if i == 0 {
		return time.Time{}, 0, fmt.Errorf("%w: %s precedes %s", ErrNoANX,
			at.UTC().Format(time.RFC3339Nano), t.anx[0].Format(time.RFC3339Nano))
	}
	return t.anx[i-1], t.firstOrbit + i - 1, nil
}

// ExtendToCover extrapolates the table by whole periods: entries are
// prepended while start precedes the first one and appended while end
// follows the last one
func (t *Table) ExtendToCover(start, end time.Time) error {
	t.mu.RLock()
	before, after := t.missing(start, end)
	t.mu.RUnlock()

	if before == 0 && after == 0 {
		return nil
	}
	if before > MaxExtrapolated || after > MaxExtrapolated {
		return fmt.Errorf("%w: %d before, %d after", ErrExtrapolationLimit, before, after)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// another caller may have extended between the two locks
	before, after = t.missing(start, end)
	first, last := t.anx[0], t.anx[len(t.anx)-1]

	next := make([]time.Time, 0, before+len(t.anx)+after)
	for k := before; k > 0; k-- {
		next = append(next, first.Add(-time.Duration(k)*t.period))
	}
	next = append(next, t.anx...)
	for k := 1; k <= after; k++ {
		next = append(next, last.Add(time.Duration(k)*t.period))
	}

	t.anx = next
	t.firstOrbit -= before
	return nil
}

// missing counts the whole periods to add before the first entry and after
// the last one so that first <= start and last >= end. Callers hold mu.
func (t *Table) missing(start, end time.Time) (before, after int) {
	first, last := t.anx[0], t.anx[len(t.anx)-1]
	if start.Before(first) {
		before = int((first.Sub(start) + t.period - 1) / t.period)
	}
	if end.After(last) {
		after = int((end.Sub(last) + t.period - 1) / t.period)
	}
	return before, after
}
