package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChuLiYu/procsim/internal/generator"
	"github.com/ChuLiYu/procsim/internal/journal"
	"github.com/ChuLiYu/procsim/internal/snapshot"
	"github.com/ChuLiYu/procsim/internal/worker"
	"github.com/ChuLiYu/procsim/pkg/types"
)

// maxErrors bounds the error messages kept per task in the summary
const maxErrors = 10

// outcome is written by the worker running a plan and read by the result
// loop once the pool reports the task done
type outcome struct {
	plan generator.Plan
	path string
}

// execute writes every plan not already generated and tallies the results
func (p *Processor) execute(ctx context.Context, r *run, taskName string, plans []generator.Plan) snapshot.TaskSummary {
	ts := snapshot.TaskSummary{
		Name:     taskName,
		Planned:  len(plans),
		Statuses: make(map[types.Status]int),
	}

	outcomes := make(map[string]*outcome)
	var queue []*outcome
	for _, plan := range plans {
		ts.Statuses[plan.Segment.Status]++
		if r.done[plan.Header.Name().Key()] {
			ts.Skipped++
			p.log.Debug("Skipping generated product", "product", plan.Name())
			continue
		}
		o := &outcome{plan: plan}
		outcomes[plan.Name()] = o
		queue = append(queue, o)
	}
	if len(queue) == 0 {
		return ts
	}

	pool := worker.NewPool(p.config.WorkerCount)
	if err := pool.Start(ctx, p.config.WorkerCount); err != nil {
		// unreachable with WorkerCount checked in New
		ts.Failed = len(queue)
		ts.Errors = append(ts.Errors, err.Error())
		r.failures += len(queue)
		return ts
	}

	// dispatch on its own goroutine; the pool's buffer is smaller than the
	// queue, so results must be drained concurrently
	go func() {
		defer pool.Stop()
		for _, o := range queue {
			p.metrics.TaskStarted()
			err := pool.Submit(worker.Task{
				ID:      o.plan.Name(),
				Timeout: p.config.TaskTimeout,
				Run: func(ctx context.Context) error {
					path, err := o.plan.Produce(ctx, p.config.PayloadSize, p.config.Resources)
					o.path = path
					return err
				},
			})
			if err != nil {
				p.metrics.RecordFailed(o.plan.Header.Type)
				p.log.Error("Failed to submit product task", "product", o.plan.Name(), "error", err)
				return
			}
		}
	}()

	received := 0
	for {
		result, err := pool.ReceiveResult()
		if errors.Is(err, worker.ErrPoolClosed) {
			break
		}
		received++
		o := outcomes[result.TaskID]
		if result.Success {
			p.handleGenerated(ctx, r, taskName, o, result)
			ts.Generated++
			continue
		}
		p.handleFailed(r, taskName, o, result)
		ts.Failed++
		if len(ts.Errors) < maxErrors {
			ts.Errors = append(ts.Errors, fmt.Sprintf("%s: %v", result.TaskID, result.Error))
		}
	}

	// tasks never submitted count as failed
	if missing := len(queue) - received; missing > 0 {
		ts.Failed += missing
		r.failures += missing
	}
	return ts
}

// handleGenerated journals a written product, then catalogues it
func (p *Processor) handleGenerated(ctx context.Context, r *run, taskName string, o *outcome, result worker.Result) {
	h := o.plan.Header
	if _, err := p.journal.Append(journal.Record{
		Type:    journal.EventGenerated,
		RunID:   r.id,
		Product: result.TaskID,
		Task:    taskName,
	}); err != nil {
		p.log.Error("Failed to append GENERATED event", "product", result.TaskID, "error", err)
	}

	if p.inventory != nil {
		if err := p.inventory.Record(ctx, r.id, o.path, h); err != nil {
			p.log.Error("Failed to record product in inventory", "product", result.TaskID, "error", err)
		}
	}

	p.metrics.RecordGenerated(h.Type, h.Status, result.Duration)
	p.log.Debug("Product generated",
		"product", result.TaskID,
		"status", h.Status,
		"duration", result.Duration)
}

func (p *Processor) handleFailed(r *run, taskName string, o *outcome, result worker.Result) {
	r.failures++
	if _, err := p.journal.Append(journal.Record{
		Type:    journal.EventFailed,
		RunID:   r.id,
		Product: result.TaskID,
		Task:    taskName,
		Error:   result.Error.Error(),
	}); err != nil {
		p.log.Error("Failed to append FAILED event", "product", result.TaskID, "error", err)
	}

	p.metrics.RecordFailed(o.plan.Header.Type)
	p.log.Warn("Product failed",
		"product", result.TaskID,
		"error", result.Error)
}
