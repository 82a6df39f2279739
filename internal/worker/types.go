package worker

import (
	"context"
	"time"
)

// Task is one unit of work, typically one product to generate
type Task struct {
	ID      string                          // unique within a run, used to match results
	Timeout time.Duration                   // 0 means no per-task deadline
	Run     func(ctx context.Context) error // the work itself; must honour ctx
}

// Result is the outcome of a Task
type Result struct {
	TaskID   string
	Success  bool
	Error    error
	Duration time.Duration
}
