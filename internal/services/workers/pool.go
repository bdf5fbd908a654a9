package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// Job represents a work item to be processed
type Job func(ctx context.Context) error

type task struct {
	name string
	run  Job
}

// Pool runs named jobs on a bounded number of workers.
// Cancelling the parent context stops workers from picking up queued jobs;
// a job already running keeps a context that is detached from that cancellation.
type Pool struct {
	jobs       chan task
	maxWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	errors     []error
	skipped    []string
	mu         sync.Mutex
	logger     arbor.ILogger
}

// NewPool creates a new worker pool bound to the parent context
func NewPool(parent context.Context, maxWorkers int, logger arbor.ILogger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		jobs:       make(chan task, maxWorkers*2),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
		errors:     make([]error, 0),
		logger:     logger,
	}
}

// Start begins the worker pool
func (p *Pool) Start() {
	p.logger.Debug().
		Int("max_workers", p.maxWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit adds a job to the pool. Submitting after cancellation or Wait fails.
func (p *Pool) Submit(name string, job Job) error {
	if p.ctx.Err() != nil {
		p.markSkipped(name)
		return fmt.Errorf("worker pool is shutting down")
	}
	select {
	case p.jobs <- task{name: name, run: job}:
		return nil
	case <-p.ctx.Done():
		p.markSkipped(name)
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Wait closes the queue and waits for all workers to finish
func (p *Pool) Wait() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
	p.cancel()
}

// Shutdown stops picking up queued jobs and waits for running ones
func (p *Pool) Shutdown() {
	p.cancel()
	p.Wait()
	p.logger.Debug().Msg("Worker pool shutdown complete")
}

// Errors returns all collected errors
func (p *Pool) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, len(p.errors))
	copy(out, p.errors)
	return out
}

// Skipped returns the names of jobs that were never started because of cancellation
func (p *Pool) Skipped() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.skipped))
	copy(out, p.skipped)
	return out
}

func (p *Pool) markSkipped(name string) {
	p.mu.Lock()
	p.skipped = append(p.skipped, name)
	p.mu.Unlock()
}

// worker processes jobs from the queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug().
		Int("worker_id", id).
		Msg("Worker started")

	for t := range p.jobs {
		if p.ctx.Err() != nil {
			// Drain the queue so every queued job is accounted for
			p.markSkipped(t.name)
			continue
		}

		if err := t.run(context.WithoutCancel(p.ctx)); err != nil {
			p.mu.Lock()
			p.errors = append(p.errors, err)
			p.mu.Unlock()

			p.logger.Error().
				Err(err).
				Str("job", t.name).
				Int("worker_id", id).
				Msg("Job failed")
		}
	}

	p.logger.Debug().
		Int("worker_id", id).
		Msg("Worker stopping - job queue closed")
}
