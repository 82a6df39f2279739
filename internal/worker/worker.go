// ============================================================================
// procsim worker - task execution unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: runs product tasks in its own goroutine
//
// Loop:
//   ┌─────────────────────────────────────┐
//   │  Worker Goroutine                   │
//   │  ┌──────────────────────────────┐   │
//   │  │ for task := range taskCh     │   │
//   │  │   ├─ Context with timeout    │   │
//   │  │   ├─ execute(task)           │   │
//   │  │   └─ send result to resultCh │   │
//   │  └──────────────────────────────┘   │
//   └─────────────────────────────────────┘
//
// Timeout Control:
//   Each task gets its own context derived from the pool context. With a
//   Timeout set, the context expires after it and execute returns
//   context.DeadlineExceeded even if the task body ignores ctx.
//
// Panics:
//   A panicking task is reported as a failed Result; the worker goes on.
//
// ============================================================================

package worker

import (
	"context"
	"fmt"
	"time"
)

// Worker represents a work execution unit
type Worker struct {
	id       int
	ctx      context.Context // parent of every task context
	taskCh   <-chan Task
	resultCh chan<- Result
}

func newWorker(ctx context.Context, id int, taskCh <-chan Task, resultCh chan<- Result) *Worker {
	return &Worker{
		id:       id,
		ctx:      ctx,
		taskCh:   taskCh,
		resultCh: resultCh,
	}
}

// Run receives tasks until taskCh is closed. Every task produces exactly
// one result; the send blocks until the pool's consumer takes it.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()

		ctx, cancel := w.taskContext(task)
		err := w.execute(ctx, task)
		cancel()

		w.resultCh <- Result{
			TaskID:   task.ID,
			Success:  err == nil,
			Error:    err,
			Duration: time.Since(start),
		}
	}
}

func (w *Worker) taskContext(task Task) (context.Context, context.CancelFunc) {
	if task.Timeout > 0 {
		return context.WithTimeout(w.ctx, task.Timeout)
	}
	return context.WithCancel(w.ctx)
}

// execute runs the task body and waits for it or for ctx, whichever ends
// first
func (w *Worker) execute(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task.Run == nil {
		return fmt.Errorf("task %s has no body", task.ID)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task %s panicked: %v", task.ID, r)
			}
		}()
		done <- task.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		// a body that finished as ctx expired still reports its own result
		select {
		case err := <-done:
			return err
		default:
			return ctx.Err()
		}
	case err := <-done:
		return err
	}
}
