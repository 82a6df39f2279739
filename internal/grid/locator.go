package grid

import (
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
)

// locate returns the preceding ANX and the un-wrapped cell count from it
func (e *Engine) locate(t time.Time) (time.Time, int64, error) {
	anx, err := e.table.NearestPrecedingANX(t)
	if err != nil {
		return time.Time{}, 0, err
	}
	// t >= anx, so truncating division is floor
	return anx, int64(t.Sub(anx) / e.cfg.Spacing), nil
}

// CellIndex returns the 1-based index of the cell containing t. Numbering
// restarts at 1 on every ANX crossing.
func (e *Engine) CellIndex(t time.Time) (int, error) {
	_, raw, err := e.locate(t)
	if err != nil {
		return 0, err
	}
	return int(raw%int64(e.cfg.CellsPerOrbit())) + 1, nil
}

// CellInterval returns the [start, end) bounds of the cell containing t.
// Bounds are anchored to the true preceding ANX and are not wrapped, even
// many orbits after it.
func (e *Engine) CellInterval(t time.Time) (time.Time, time.Time, error) {
	anx, raw, err := e.locate(t)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := anx.Add(time.Duration(raw) * e.cfg.Spacing)
	return start, start.Add(e.cfg.Spacing), nil
}

// Cell returns index and bounds of the cell containing t
func (e *Engine) Cell(t time.Time) (types.GridCell, error) {
	anx, raw, err := e.locate(t)
	if err != nil {
		return types.GridCell{}, err
	}
	start := anx.Add(time.Duration(raw) * e.cfg.Spacing)
	return types.GridCell{
		Index: int(raw%int64(e.cfg.CellsPerOrbit())) + 1,
		Start: start,
		End:   start.Add(e.cfg.Spacing),
	}, nil
}
