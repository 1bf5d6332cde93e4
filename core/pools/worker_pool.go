package pools

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the pool size used when none is configured
const DefaultWorkers = 16

var (
	ErrInvalidSize = errors.New("worker pool size must be greater than 0")
	ErrPoolClosed  = errors.New("worker pool is closed")
)

// Job is a deferred unit of work. A Job owns whatever it captures until it
// returns.
type Job func()

// WorkerPool runs jobs on a fixed set of goroutines fed by one shared,
// unbounded FIFO queue. The lock is held only to enqueue or dequeue; jobs
// run outside it, so at most Size() jobs execute at once while the queue
// itself grows without bound.
type WorkerPool struct {
	numWorkers int
	logger     *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	head   int
	closed bool

	wg sync.WaitGroup

	// Statistics
	stats struct {
		submitted atomic.Uint64
		completed atomic.Uint64
		panicked  atomic.Uint64
		active    atomic.Int64
	}
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithLogger sets the logger used for worker lifecycle and job panics
func WithLogger(logger *slog.Logger) Option {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewWorkerPool starts numWorkers workers
func NewWorkerPool(numWorkers int, opts ...Option) (*WorkerPool, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, numWorkers)
	}

	p := &WorkerPool{
		numWorkers: numWorkers,
		logger:     slog.Default(),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(numWorkers)
	for id := 0; id < numWorkers; id++ {
		go p.run(id)
	}

	return p, nil
}

// Size returns the fixed number of workers
func (p *WorkerPool) Size() int {
	return p.numWorkers
}

// Submit enqueues a job for asynchronous execution
func (p *WorkerPool) Submit(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.stats.submitted.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// next blocks until a job is available or the pool is closed and drained.
func (p *WorkerPool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.head == len(p.queue) && !p.closed {
		p.cond.Wait()
	}

	if p.head == len(p.queue) {
		return nil, false
	}

	job := p.queue[p.head]
	p.queue[p.head] = nil
	p.head++

	// Reclaim the consumed prefix once it dominates the backing array
	switch {
	case p.head == len(p.queue):
		p.queue = p.queue[:0]
		p.head = 0
	case p.head > len(p.queue)/2:
		n := copy(p.queue, p.queue[p.head:])
		clear(p.queue[n:])
		p.queue = p.queue[:n]
		p.head = 0
	}

	return job, true
}

// run is the main loop for a worker goroutine
func (p *WorkerPool) run(id int) {
	defer p.wg.Done()

	for {
		job, ok := p.next()
		if !ok {
			p.logger.Debug("worker stopped", "worker", id)
			return
		}
		p.execute(id, job)
	}
}

// execute runs one job; a panic is confined to that job and the worker
// goes on to the next one.
func (p *WorkerPool) execute(id int, job Job) {
	p.stats.active.Add(1)
	defer func() {
		p.stats.active.Add(-1)
		p.stats.completed.Add(1)
		if r := recover(); r != nil {
			p.stats.panicked.Add(1)
			p.logger.Error("job panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	job()
}

// Shutdown stops accepting jobs, lets the workers drain everything already
// queued and waits for all of them to exit. It is safe to call repeatedly.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	// completed first so pending never underflows
	completed := p.stats.completed.Load()
	submitted := p.stats.submitted.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   submitted - completed,
		TasksActive:    p.stats.active.Load(),
		TasksPanicked:  p.stats.panicked.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int    `json:"num_workers"`
	TasksSubmitted uint64 `json:"tasks_submitted"`
	TasksCompleted uint64 `json:"tasks_completed"`
	TasksPending   uint64 `json:"tasks_pending"`
	TasksActive    int64  `json:"tasks_active"`
	TasksPanicked  uint64 `json:"tasks_panicked"`
}
