package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"calsched/internal/metrics"
)

// Task represents a unit of work for the worker pool. Process returns
// an error to trigger the retry logic.
type Task interface {
	ID() string
	Process() error
}

// Pool manages a set of worker goroutines draining a bounded task
// queue. Tasks that keep failing end up in the dead letter list.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger

	workers  int
	tasks    chan Task
	queueCap int

	maxAttempts int
	backoff     time.Duration

	deadLetterMu sync.Mutex
	deadLetter   []Task
}

// PoolStats holds monitoring information about the worker pool.
type PoolStats struct {
	Workers     int
	QueueLength int
	DeadLetters int
}

// NewPool creates a pool with the given number of workers and queue
// capacity. Failed tasks are retried up to maxAttempts times with a
// linear backoff between attempts.
func NewPool(workers, queueCap, maxAttempts int, backoff time.Duration, logger *log.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		workers:     workers,
		tasks:       make(chan Task, queueCap),
		queueCap:    queueCap,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		deadLetter:  make([]Task, 0),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

// Stop signals all workers to exit and waits for them to finish.
// Queued tasks submitted before Stop are still drained.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

// Submit adds a task to the queue. It returns false when the queue is
// full so the caller can apply backpressure instead of blocking.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for task := range p.tasks {
		metrics.TasksInFlight.Inc()
		p.processWithRetry(task)
		metrics.TasksInFlight.Dec()
	}
}

// processWithRetry runs a task, retrying with backoff until it
// succeeds, attempts run out, or the pool shuts down.
func (p *Pool) processWithRetry(task Task) {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = task.Process(); err == nil {
			return
		}
		p.logger.Printf("task %s attempt %d/%d failed: %v", task.ID(), attempt, p.maxAttempts, err)
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	p.deadLetterMu.Lock()
	p.deadLetter = append(p.deadLetter, task)
	p.deadLetterMu.Unlock()
	metrics.TasksDeadLettered.Inc()
	p.logger.Printf("task %s moved to dead letter queue: %v", task.ID(), err)
}

// DeadLetters returns the tasks that exhausted their retries.
func (p *Pool) DeadLetters() []Task {
	p.deadLetterMu.Lock()
	defer p.deadLetterMu.Unlock()
	out := make([]Task, len(p.deadLetter))
	copy(out, p.deadLetter)
	return out
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Stats returns current statistics about the worker pool.
func (p *Pool) Stats() PoolStats {
	p.deadLetterMu.Lock()
	dead := len(p.deadLetter)
	p.deadLetterMu.Unlock()
	return PoolStats{
		Workers:     p.workers,
		QueueLength: len(p.tasks),
		DeadLetters: dead,
	}
}
