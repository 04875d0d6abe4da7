package worker

import (
	"context"
	"sync"
	"time"
)

const taskTimeout = 30 * time.Second

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Pool manages a fixed set of workers for executing tasks concurrently.
// It is used to fan out per-instance API lookups during a scan.
type Pool struct {
	maxWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers: maxWorkers,
		tasks:      make(chan Task, maxWorkers*2),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops the worker pool and waits for in-flight tasks to finish
func (p *Pool) Stop() {
	p.cancel()
	close(p.tasks)
	p.wg.Wait()
}

// ExecuteTasks runs all tasks on the pool and blocks until they complete.
// Task errors are the task's own responsibility to record.
func (p *Pool) ExecuteTasks(tasks []Task) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for _, t := range tasks {
		task := t
		select {
		case p.tasks <- func(ctx context.Context) error {
			defer wg.Done()
			return task(ctx)
		}:
		case <-p.ctx.Done():
			wg.Done()
		}
	}

	wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		taskCtx, cancel := context.WithTimeout(p.ctx, taskTimeout)
		_ = task(taskCtx)
		cancel()
	}
}
