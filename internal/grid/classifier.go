package grid

import (
	"fmt"
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
)

// Alignment tells which rule produced the theoretical bounds
type Alignment int

const (
	AlignedExact   Alignment = iota // bounds already span exactly one cell
	AlignedOverlap                  // bounds span one cell plus both overlaps
	Derived                         // bounds recomputed from the grid
)

func (a Alignment) String() string {
	switch a {
	case AlignedExact:
		return "aligned"
	case AlignedOverlap:
		return "aligned-with-overlap"
	case Derived:
		return "derived"
	default:
		return "unknown"
	}
}

// Classify normalizes caller-supplied slice bounds to theoretical grid
// bounds. Rules are tried in order, first match wins:
//  1. stop-start equals the spacing: bounds returned unchanged
//  2. bounds minus overlap_start/overlap_end equal the spacing: the
//     de-overlapped bounds are returned
//  3. otherwise the cell containing the midpoint is returned
func (e *Engine) Classify(start, stop time.Time) (types.Window, Alignment, error) {
	if !stop.After(start) {
		return types.Window{}, Derived, fmt.Errorf("%w: %s", ErrDegenerateWindow,
			types.Window{Start: start, Stop: stop})
	}

	if nearly(stop.Sub(start), e.cfg.Spacing) {
		return types.Window{Start: start, Stop: stop}, AlignedExact, nil
	}

	inner := types.Window{
		Start: start.Add(e.cfg.OverlapStart),
		Stop:  stop.Add(-e.cfg.OverlapEnd),
	}
	if nearly(inner.Duration(), e.cfg.Spacing) {
		return inner, AlignedOverlap, nil
	}

	mid := start.Add(stop.Sub(start) / 2)
	cellStart, cellEnd, err := e.CellInterval(mid)
	if err != nil {
		return types.Window{}, Derived, fmt.Errorf("%w: %w", ErrUnalignable, err)
	}
	return types.Window{Start: cellStart, Stop: cellEnd}, Derived, nil
}
