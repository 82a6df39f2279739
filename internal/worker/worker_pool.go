// ============================================================================
// procsim worker pool - bounded concurrent task executor
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Function: run product tasks on a fixed number of goroutines
//
// Architecture:
//   ┌─────────────┐
//   │ Processor   │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  │Worker 3│←── taskCh
//   │  └────────┘ │
//   └─────────────┘
//
// Lifecycle:
//   1. NewPool(buffer)   - channels sized to buffer
//   2. Start(ctx, n)     - n workers; cancelling ctx cancels running tasks
//   3. Submit(task)      - blocks while taskCh is full
//   4. ReceiveResult()   - one result per submitted task
//   5. Stop()            - close taskCh, wait for workers, close resultCh
//
// Results are never dropped: a worker blocks on resultCh until the
// consumer reads. Callers submitting more tasks than the buffer holds must
// read results concurrently.
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPoolClosed means the pool has been stopped
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted means Start has not been called
	ErrPoolNotStarted = errors.New("worker pool not started")
)

// Pool manages a fixed set of workers
type Pool struct {
	workers  []*Worker
	taskCh   chan Task
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// NewPool creates a pool whose task and result channels hold bufferSize
// entries
func NewPool(bufferSize int) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount workers whose tasks derive from ctx
func (p *Pool) Start(ctx context.Context, workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}
	if workerCount <= 0 {
		return errors.New("worker count must be positive")
	}

	for i := 0; i < workerCount; i++ {
		worker := newWorker(ctx, i, p.taskCh, p.resultCh)
		p.workers = append(p.workers, worker)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(worker)
	}

	p.started = true
	return nil
}

// Submit queues a task. The lock is held across the send so Stop cannot
// close taskCh underneath it; Stop waits for the send to complete.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	p.taskCh <- task
	return nil
}

// ReceiveResult returns the next result, or ErrPoolClosed once the pool is
// stopped and every result has been read
func (p *Pool) ReceiveResult() (Result, error) {
	result, ok := <-p.resultCh
	if !ok {
		return Result{}, ErrPoolClosed
	}
	return result, nil
}

// Stop stops accepting tasks, lets the workers finish what is queued and
// closes the result channel. Results still buffered remain readable.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	close(p.taskCh)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
}

// Done is closed when Stop begins
func (p *Pool) Done() <-chan struct{} {
	return p.stopCh
}

// GetWorkerCount returns the number of workers started
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted reports whether Start has been called
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
