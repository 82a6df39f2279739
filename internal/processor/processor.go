// ============================================================================
// procsim processor - job order execution
// ============================================================================
//
// Package: internal/processor
// File: processor.go
// Function: run every task of a job order, product by product
//
// Components:
//   - Generators: one per task name, plan the products of a task
//   - Worker Pool: writes products concurrently, one task per product
//   - Journal: one GENERATED/FAILED event per product outcome
//   - Inventory: catalogue row per written product (optional)
//   - Snapshot: run summary written when the run ends
//
// Run:
//   1. Fresh run: rotate the journal. Resumed run: read it and skip every
//      product already generated.
//   2. Tasks run in job-order order, so a framer task can read the slices a
//      slicer task of the same job order has just written.
//   3. Per task: plan -> submit each product -> collect results.
//   4. Results are handled on one goroutine: journal first, then
//      inventory and metrics.
//   5. The run summary is written even when a task fails.
//
// Idempotence:
//   Products are keyed by their name without the creation date, so a
//   resumed run recognises what an earlier run wrote.
//
// ============================================================================

package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChuLiYu/procsim/internal/generator"
	"github.com/ChuLiYu/procsim/internal/inventory"
	"github.com/ChuLiYu/procsim/internal/joborder"
	"github.com/ChuLiYu/procsim/internal/journal"
	"github.com/ChuLiYu/procsim/internal/metrics"
	"github.com/ChuLiYu/procsim/internal/product"
	"github.com/ChuLiYu/procsim/internal/snapshot"
	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/google/uuid"
)

// ErrIncomplete means at least one product of the run failed
var ErrIncomplete = errors.New("processor: run incomplete")

// Config Processor configuration
type Config struct {
	Mission          string
	ProcessorName    string
	ProcessorVersion string
	Baseline         int
	WorkerCount      int           // concurrent product tasks
	TaskTimeout      time.Duration // per product; 0 disables
	PayloadSize      int64         // bytes of simulated payload per product
	Resources        generator.Resources
	KeepSummaries    int // previous run summaries kept as backups
}

// Factory builds the generator for one task name. Meta carries the run's
// creation date, so generators are built per run.
type Factory func(meta generator.Meta) generator.Generator

// Processor runs job orders
type Processor struct {
	config    Config
	factories map[string]Factory
	journal   *journal.Journal
	inventory *inventory.Inventory // nil disables the catalogue
	metrics   *metrics.Collector
	snapshot  *snapshot.Manager
	log       *slog.Logger
	now       func() time.Time
}

// New builds a processor. inv may be nil.
func New(config Config, j *journal.Journal, inv *inventory.Inventory, m *metrics.Collector, snap *snapshot.Manager) (*Processor, error) {
	switch {
	case config.WorkerCount <= 0:
		return nil, fmt.Errorf("worker count must be positive, got %d", config.WorkerCount)
	case j == nil:
		return nil, errors.New("processor needs a journal")
	case m == nil:
		return nil, errors.New("processor needs a metrics collector")
	case snap == nil:
		return nil, errors.New("processor needs a snapshot manager")
	}
	return &Processor{
		config:    config,
		factories: make(map[string]Factory),
		journal:   j,
		inventory: inv,
		metrics:   m,
		snapshot:  snap,
		log:       slog.Default().With("component", "processor"),
		now:       time.Now,
	}, nil
}

// Register binds a task name to the generator that plans it
func (p *Processor) Register(task string, f Factory) {
	p.factories[task] = f
}

// RunOptions Run parameters
type RunOptions struct {
	JobOrderPath string // recorded in the summary
	Resume       bool   // skip products the journal already has
}

// run is the state of one Run
type run struct {
	id       string
	meta     generator.Meta
	done     map[string]bool // product keys already generated
	summary  snapshot.Summary
	failures int
}

// Run executes every task of jo in order. The summary is returned and
// written even when Run fails; ErrIncomplete is returned when products
// failed but every task could be planned.
func (p *Processor) Run(ctx context.Context, jo *joborder.JobOrder, opts RunOptions) (snapshot.Summary, error) {
	started := p.now().UTC()
	r := &run{
		id: uuid.New().String(),
		meta: generator.Meta{
			Mission:          p.config.Mission,
			ProcessorName:    p.config.ProcessorName,
			ProcessorVersion: p.config.ProcessorVersion,
			Baseline:         p.config.Baseline,
			Created:          started.Truncate(time.Second),
		},
		done: make(map[string]bool),
	}
	r.summary = snapshot.Summary{
		RunID:     r.id,
		JobOrder:  opts.JobOrderPath,
		Mission:   p.config.Mission,
		Resumed:   opts.Resume,
		StartedAt: started,
	}

	p.log.Info("Starting run", "run_id", r.id, "tasks", len(jo.Tasks), "resume", opts.Resume)

	err := p.prepareJournal(r, opts.Resume)
	if err == nil {
		err = p.runTasks(ctx, r, jo)
	}

	r.summary.FinishedAt = p.now().UTC()
	r.summary.LastSeq = p.journal.LastSeq()
	p.metrics.SetRunDuration(r.summary.Duration())
	if werr := p.snapshot.WriteWithBackup(r.summary, p.config.KeepSummaries); werr != nil {
		p.log.Error("Failed to write run summary", "error", werr)
		if err == nil {
			err = werr
		}
	}

	generated, skipped, failed := r.summary.Totals()
	p.log.Info("Run finished",
		"run_id", r.id,
		"duration", r.summary.Duration(),
		"generated", generated,
		"skipped", skipped,
		"failed", failed)

	if err != nil {
		return r.summary, err
	}
	if r.failures > 0 {
		return r.summary, fmt.Errorf("%w: %d products failed", ErrIncomplete, r.failures)
	}
	return r.summary, nil
}

// prepareJournal rotates the journal for a fresh run, or loads the keys of
// the products it already holds for a resumed one
func (p *Processor) prepareJournal(r *run, resume bool) error {
	if !resume {
		if p.journal.LastSeq() == 0 {
			return nil
		}
		backup, err := p.journal.Rotate()
		if err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
		p.log.Info("Journal rotated", "backup", backup)
		return nil
	}

	names, err := p.journal.Generated()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	for name := range names {
		n, err := product.ParseName(name)
		if err != nil {
			p.log.Warn("Ignoring unparseable journal entry", "product", name, "error", err)
			continue
		}
		r.done[n.Key()] = true
	}
	p.log.Info("Journal loaded", "generated", len(r.done))
	return nil
}

func (p *Processor) runTasks(ctx context.Context, r *run, jo *joborder.JobOrder) error {
	for _, task := range jo.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		factory, ok := p.factories[task.Name]
		if !ok {
			return fmt.Errorf("%w: %s", joborder.ErrUnknownTask, task.Name)
		}

		start := time.Now()
		plans, err := factory(r.meta).Plan(task)
		if err != nil {
			return fmt.Errorf("failed to plan task %s: %w", task.Name, err)
		}

		segs := make([]types.Segment, len(plans))
		for i, plan := range plans {
			segs[i] = plan.Segment
		}
		p.metrics.RecordSegments(segs)

		ts := p.execute(ctx, r, task.Name, plans)
		if len(plans) > 0 {
			ts.Window = types.Window{Start: plans[0].Header.SensingStart, Stop: plans[len(plans)-1].Header.SensingStop}
		}
		r.summary.Tasks = append(r.summary.Tasks, ts)

		p.log.Info("Task finished",
			"task", task.Name,
			"planned", ts.Planned,
			"generated", ts.Generated,
			"skipped", ts.Skipped,
			"failed", ts.Failed,
			"duration", time.Since(start))
	}
	return nil
}
