package generator

import (
	"fmt"

	"github.com/ChuLiYu/procsim/internal/grid"
	"github.com/ChuLiYu/procsim/internal/joborder"
)

// Slicer cuts an acquisition into level-0 slices on the slicing grid
type Slicer struct {
	engine      *grid.Engine
	productType string
	meta        Meta
}

func NewSlicer(engine *grid.Engine, productType string, meta Meta) *Slicer {
	return &Slicer{engine: engine, productType: productType, meta: meta}
}

// Plan uses the job-order sensing time as the acquisition window, or the
// union of the input products' sensing times when the job order has none.
// A Slice_Number in the job order fixes the id of the first slice.
func (s *Slicer) Plan(task joborder.Task) ([]Plan, error) {
	window, ok := task.SensingWindow()
	if !ok {
		inputs, err := readInputs(task)
		if err != nil {
			return nil, err
		}
		if window, ok = sensingUnion(inputs); !ok {
			return nil, fmt.Errorf("%s: %w", task.Name, ErrNoWindow)
		}
	}

	segs, err := s.engine.Build(grid.Request{Window: window, StartIndex: task.SliceNumber})
	if err != nil {
		return nil, fmt.Errorf("%s: slicing %s: %w", task.Name, window, err)
	}

	out := task.Output(s.productType)
	plans := make([]Plan, 0, len(segs))
	for _, seg := range segs {
		h, err := header(s.engine, s.meta, s.productType, out, seg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", task.Name, err)
		}
		plans = append(plans, Plan{
			Task:      task.Name,
			OutputDir: out.FileDir,
			Segment:   seg,
			Header:    h,
		})
	}
	return plans, nil
}
