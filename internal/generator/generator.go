// ============================================================================
// Product generators
// ============================================================================
//
// Package: internal/generator
// File: generator.go
// Purpose: turn a job-order task into the list of products to write
//
// Generators:
//   Slicer (L0_Slicer) - acquisition window -> level-0 slices
//   Framer (L1_Framer) - level-0 slices     -> level-1 frames
//
// Both only plan. A Plan is executed later by Produce, usually on the
// worker pool, so planning stays cheap and deterministic and the resource
// simulation runs with the task's deadline.
//
// ============================================================================

package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ChuLiYu/procsim/internal/grid"
	"github.com/ChuLiYu/procsim/internal/joborder"
	"github.com/ChuLiYu/procsim/internal/product"
	"github.com/ChuLiYu/procsim/pkg/types"
)

var (
	// ErrNoWindow means neither the job order nor the inputs give a sensing time
	ErrNoWindow = errors.New("generator: no sensing window")
	// ErrNoInputs means a task that needs input products has none
	ErrNoInputs = errors.New("generator: no input products")
)

// Meta carries the run-wide header fields
type Meta struct {
	Mission          string
	ProcessorName    string
	ProcessorVersion string
	Baseline         int       // used when the job-order output sets none
	Created          time.Time // creation date stamped on every product of the run
}

// Plan is one product to be written
type Plan struct {
	Task      string
	OutputDir string
	Segment   types.Segment
	Header    product.Header
}

// Name returns the product name the plan will be written under
func (p Plan) Name() string {
	return p.Header.Name().String()
}

// Generator plans the products for one job-order task
type Generator interface {
	Plan(task joborder.Task) ([]Plan, error)
}

// Produce simulates the processing load, then writes the product. The
// header's ID and payload fields are filled in on success.
func (p *Plan) Produce(ctx context.Context, payloadSize int64, res Resources) (string, error) {
	if err := res.Consume(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", p.Name(), err)
	}
	return product.Write(ctx, p.OutputDir, &p.Header, payloadSize)
}

// header fills the parts of a product header that come from a segment
func header(engine *grid.Engine, meta Meta, productType string, out joborder.Output, seg types.Segment) (product.Header, error) {
	orbit, err := engine.Table().AbsoluteOrbit(seg.Cell.Start)
	if err != nil {
		return product.Header{}, fmt.Errorf("absolute orbit of segment %d: %w", seg.ID, err)
	}
	baseline := out.Baseline
	if baseline == 0 {
		baseline = meta.Baseline
	}
	return product.Header{
		Mission:          meta.Mission,
		Type:             productType,
		Baseline:         baseline,
		SensingStart:     seg.SensingStart,
		SensingStop:      seg.SensingStop,
		ValidityStart:    seg.ValidityStart,
		ValidityStop:     seg.ValidityStop,
		AbsoluteOrbit:    orbit,
		CellNumber:       seg.Cell.Index,
		SequenceID:       seg.ID,
		Status:           seg.Status,
		ProcessorName:    meta.ProcessorName,
		ProcessorVersion: meta.ProcessorVersion,
		Created:          meta.Created,
	}, nil
}

// readInputs reads the headers of every input product of the task. An
// input naming a plain directory stands for every product of its
// File_Type found in it.
func readInputs(task joborder.Task) ([]product.Header, error) {
	var headers []product.Header
	for _, in := range task.Inputs {
		h, err := product.ReadHeader(in.FileName)
		if err == nil {
			headers = append(headers, h)
			continue
		}
		if !errors.Is(err, product.ErrNoHeader) || !isDir(in.FileName) {
			return nil, fmt.Errorf("input %s: %w", in.FileName, err)
		}

		dirs, err := product.Scan(in.FileName)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.FileName, err)
		}
		for _, dir := range dirs {
			h, err := product.ReadHeader(dir)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", dir, err)
			}
			if in.FileType == "" || h.Type == in.FileType {
				headers = append(headers, h)
			}
		}
	}
	return headers, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// sensingUnion is the smallest window covering every header's sensing time
func sensingUnion(headers []product.Header) (types.Window, bool) {
	if len(headers) == 0 {
		return types.Window{}, false
	}
	w := headers[0].Sensing()
	for _, h := range headers[1:] {
		w = w.Union(h.Sensing())
	}
	return w, true
}
