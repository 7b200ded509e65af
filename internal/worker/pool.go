package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	idx int
	job Job
}

type indexedResult struct {
	idx    int
	result Result
}

// Pool manages a bounded set of workers. Results come back in submission
// order.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	sendMu    sync.RWMutex // Held for reading while a Submit sends
	mu        sync.Mutex
	submitted int
	closed    bool
	collected []Result
	done      chan struct{}
}

// NewPool creates a new worker pool bound to ctx. Cancelling ctx does not
// drop queued jobs: they still run, with the cancelled context, so every
// submitted job yields a result.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexedResult, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for ij := range p.jobQueue {
		p.results <- indexedResult{idx: ij.idx, result: ij.job.Execute(p.ctx)}
	}
}

// collect drains results as they arrive so workers never block on a full
// results channel
func (p *Pool) collect() {
	defer close(p.done)
	for r := range p.results {
		p.mu.Lock()
		for len(p.collected) <= r.idx {
			p.collected = append(p.collected, nil)
		}
		p.collected[r.idx] = r.result
		p.mu.Unlock()
	}
}

// Submit submits a job to the pool. It returns false once the pool has been
// waited on or shut down.
func (p *Pool) Submit(job Job) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	idx := p.submitted
	p.submitted++
	p.mu.Unlock()

	p.jobQueue <- indexedJob{idx: idx, job: job}
	return true
}

// Wait waits for all jobs to complete and returns their results in
// submission order
func (p *Pool) Wait() []Result {
	p.close()
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]Result, p.submitted)
	copy(results, p.collected)
	return results
}

// Shutdown cancels in-flight jobs and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.close()
	<-p.done
}

func (p *Pool) close() {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobQueue)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}
