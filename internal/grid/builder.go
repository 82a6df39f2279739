package grid

import (
	"fmt"
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
)

// Request describes one segmentation of an acquisition window
type Request struct {
	Window     types.Window // acquisition [start, stop]
	SliceStart time.Time    // theoretical start of the first cell; zero derives it
	StartIndex int          // id of the first cell; 0 derives it from CellIndex
}

// Build walks the acquisition window over the grid and returns the ordered
// segments covering it.
//
// Each cell [c, c+spacing) yields validity [c, c+spacing+overlap_end]; the
// sensing interval is the validity clipped to the acquisition. When the
// acquisition starts exactly overlap_start before a boundary, that boundary
// opens the first cell and the lead-in is not reported; a stop exactly
// overlap_end after a boundary closes the walk there.
//
// Edges are then cleaned up: an edge segment whose sensing lies inside its
// neighbour's is dropped, and an edge segment covering less than
// MinDuration of its own cell is merged into its neighbour.
func (e *Engine) Build(req Request) ([]types.Segment, error) {
	w := req.Window
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrDegenerateWindow, w)
	}
	if w.Duration() < e.cfg.MinDuration {
		return nil, fmt.Errorf("%w: %s is %s, minimum %s", ErrWindowTooShort, w, w.Duration(), e.cfg.MinDuration)
	}

	spacing := e.cfg.Spacing

	sliceStart := req.SliceStart
	if sliceStart.IsZero() {
		start, _, err := e.CellInterval(w.Start.Add(e.cfg.OverlapStart))
		if err != nil {
			return nil, fmt.Errorf("locate first slice: %w", err)
		}
		sliceStart = start
	}

	// data before the first boundary is lead-in overlap only when it
	// starts exactly overlap_start early; otherwise the first cell is the
	// one the data starts in
	rangeStart := w.Start
	first := sliceStart
	if within(w.Start, sliceStart.Add(-e.cfg.OverlapStart)) {
		rangeStart = sliceStart
	} else {
		start, _, err := e.CellInterval(w.Start)
		if err != nil {
			return nil, fmt.Errorf("locate first cell: %w", err)
		}
		first = start
	}
	rangeEnd := w.Stop

	limit := w.Stop
	if tail := w.Stop.Add(-e.cfg.OverlapEnd); tail.Sub(first) > spacing-Epsilon && onGrid(tail, first, spacing) {
		limit = tail
	}

	firstIndex, err := e.CellIndex(first)
	if err != nil {
		return nil, fmt.Errorf("index first cell: %w", err)
	}
	base := req.StartIndex
	if base <= 0 {
		base = firstIndex
	}
	cells := e.cfg.CellsPerOrbit()

	var segs []types.Segment
	for offset, c := 0, first; ; offset, c = offset+1, c.Add(spacing) {
		seg := types.Segment{
			ID: base + offset,
			Cell: types.GridCell{
				Index: (firstIndex-1+offset)%cells + 1,
				Start: c,
				End:   c.Add(spacing),
			},
			ValidityStart: c,
			ValidityStop:  c.Add(spacing + e.cfg.OverlapEnd),
			Status:        types.StatusNominal,
		}
		seg.SensingStart = latest(seg.ValidityStart, rangeStart)
		seg.SensingStop = earliest(seg.ValidityStop, rangeEnd)
		if seg.SensingStart.Sub(seg.ValidityStart) >= Epsilon || seg.ValidityStop.Sub(seg.SensingStop) >= Epsilon {
			seg.Status = types.StatusPartial
		}
		segs = append(segs, seg)

		if !c.Add(spacing).Add(Epsilon).Before(limit) {
			break
		}
	}

	segs = dropRedundantEdges(segs)
	segs = e.mergeShortEdges(segs)

	if len(segs) == 1 && coverage(segs[0]) < e.cfg.MinDuration {
		return nil, fmt.Errorf("%w: single segment %s covers %s of its cell, minimum %s",
			ErrWindowTooShort, segs[0].Sensing(), coverage(segs[0]), e.cfg.MinDuration)
	}
	return segs, nil
}

// dropRedundantEdges removes edge segments whose sensing interval lies
// inside the neighbour's
func dropRedundantEdges(segs []types.Segment) []types.Segment {
	for len(segs) > 1 && contains(segs[1], segs[0]) {
		segs = segs[1:]
	}
	for len(segs) > 1 && contains(segs[len(segs)-2], segs[len(segs)-1]) {
		segs = segs[:len(segs)-1]
	}
	return segs
}

// mergeShortEdges folds an undersized first or last segment into its
// neighbour, which takes over the folded bounds
func (e *Engine) mergeShortEdges(segs []types.Segment) []types.Segment {
	if len(segs) > 1 && coverage(segs[0]) < e.cfg.MinDuration {
		next := &segs[1]
		next.SensingStart = segs[0].SensingStart
		next.ValidityStart = earliest(next.ValidityStart, segs[0].ValidityStart)
		next.Status = types.StatusMerged
		segs = segs[1:]
	}
	if n := len(segs); n > 1 && coverage(segs[n-1]) < e.cfg.MinDuration {
		prev := &segs[n-2]
		prev.SensingStop = segs[n-1].SensingStop
		prev.ValidityStop = latest(prev.ValidityStop, segs[n-1].ValidityStop)
		prev.Status = types.StatusMerged
		segs = segs[:n-1]
	}
	return segs
}

// contains reports whether inner's sensing interval lies in outer's
func contains(outer, inner types.Segment) bool {
	return inner.SensingStart.Sub(outer.SensingStart) > -Epsilon &&
		outer.SensingStop.Sub(inner.SensingStop) > -Epsilon
}

// coverage is how much of its own grid cell a segment's data covers
func coverage(s types.Segment) time.Duration {
	from := latest(s.SensingStart, s.Cell.Start)
	to := earliest(s.SensingStop, s.Cell.End)
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// onGrid reports whether t lies on a cell boundary of the grid through origin
func onGrid(t, origin time.Time, spacing time.Duration) bool {
	d := t.Sub(origin) % spacing
	if d < 0 {
		d += spacing
	}
	return d < Epsilon || spacing-d < Epsilon
}
