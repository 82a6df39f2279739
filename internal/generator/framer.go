package generator

import (
	"fmt"
	"sort"
	"time"

	"github.com/ChuLiYu/procsim/internal/grid"
	"github.com/ChuLiYu/procsim/internal/joborder"
	"github.com/ChuLiYu/procsim/internal/product"
	"github.com/ChuLiYu/procsim/pkg/types"
)

// Framer cuts level-0 slices into level-1 frames on the framing grid.
// The slicing engine recovers each input slice's theoretical bounds so every
// frame can name the slice it was cut from.
type Framer struct {
	slicing     *grid.Engine
	framing     *grid.Engine
	productType string
	meta        Meta
}

func NewFramer(slicing, framing *grid.Engine, productType string, meta Meta) *Framer {
	return &Framer{slicing: slicing, framing: framing, productType: productType, meta: meta}
}

// parentSlice is one input slice located on the slicing grid
type parentSlice struct {
	header    product.Header
	bounds    types.Window // theoretical slice bounds
	alignment grid.Alignment
	number    int
}

// Plan frames the union of the inputs' sensing times, or the job-order
// sensing time when one is given.
func (f *Framer) Plan(task joborder.Task) ([]Plan, error) {
	inputs, err := readInputs(task)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", task.Name, ErrNoInputs)
	}

	parents, err := f.locateParents(inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task.Name, err)
	}

	window, ok := task.SensingWindow()
	if !ok {
		window, _ = sensingUnion(inputs)
	}

	req := grid.Request{Window: window, StartIndex: task.SliceNumber}
	if within(window.Start, parents[0].bounds.Start) {
		req.SliceStart = parents[0].bounds.Start
	}
	frames, err := f.framing.Build(req)
	if err != nil {
		return nil, fmt.Errorf("%s: framing %s: %w", task.Name, window, err)
	}

	out := task.Output(f.productType)
	plans := make([]Plan, 0, len(frames))
	for _, frame := range frames {
		h, err := header(f.framing, f.meta, f.productType, out, frame)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", task.Name, err)
		}
		h.ParentCell = parentOf(parents, frame.Cell.Start)
		plans = append(plans, Plan{
			Task:      task.Name,
			OutputDir: out.FileDir,
			Segment:   frame,
			Header:    h,
		})
	}
	return plans, nil
}

// locateParents classifies every input slice, ordered by validity start
func (f *Framer) locateParents(inputs []product.Header) ([]parentSlice, error) {
	parents := make([]parentSlice, 0, len(inputs))
	for _, h := range inputs {
		bounds, alignment, err := f.slicing.Classify(h.ValidityStart, h.ValidityStop)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", h.Name(), err)
		}
		number, err := f.slicing.CellIndex(bounds.Start)
		if err != nil {
			return nil, fmt.Errorf("slice number of %s: %w", h.Name(), err)
		}
		parents = append(parents, parentSlice{header: h, bounds: bounds, alignment: alignment, number: number})
	}
	sort.Slice(parents, func(i, j int) bool {
		return parents[i].header.ValidityStart.Before(parents[j].header.ValidityStart)
	})
	return parents, nil
}

// parentOf returns the number of the slice a frame starting at t was cut
// from: the slice whose theoretical bounds hold t, else the slice whose
// validity holds t (a merged slice reaches past its own cell), else 0.
func parentOf(parents []parentSlice, t time.Time) int {
	for _, p := range parents {
		if !t.Before(p.bounds.Start) && t.Before(p.bounds.Stop) {
			return p.number
		}
	}
	for _, p := range parents {
		if !t.Before(p.header.ValidityStart) && t.Before(p.header.ValidityStop) {
			return p.header.CellNumber
		}
	}
	return 0
}

func within(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -grid.Epsilon && d < grid.Epsilon
}
