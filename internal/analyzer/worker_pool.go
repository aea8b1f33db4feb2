package analyzer

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go-damage-assessor/internal/logger"
)

// WorkerPool runs analysis jobs off the request path with a fixed number of
// workers and a bounded queue
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool

	totalJobs     int64
	completedJobs int64
	failedJobs    int64
	activeWorkers int64
}

// PoolStats is a point-in-time snapshot of the pool counters
type PoolStats struct {
	Workers       int
	QueueLength   int
	QueueCapacity int
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveWorkers int64
}

// NewWorkerPool creates a new worker pool. Non-positive workers defaults to
// the CPU count and non-positive queueSize to twice the workers.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), queueSize),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job func()) {
	atomic.AddInt64(&wp.activeWorkers, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&wp.failedJobs, 1)
			logger.WithField("panic", fmt.Sprint(r)).Error("Worker recovered from panic")
		} else {
			atomic.AddInt64(&wp.completedJobs, 1)
		}
		atomic.AddInt64(&wp.activeWorkers, -1)
		wp.wg.Done()
	}()
	job()
}

// Submit enqueues a job without blocking. It returns false when the queue is
// full or the pool is closed.
func (wp *WorkerPool) Submit(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}

	wp.wg.Add(1)
	select {
	case wp.jobQueue <- job:
		atomic.AddInt64(&wp.totalJobs, 1)
		return true
	default:
		wp.wg.Done()
		return false
	}
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close stops accepting jobs and waits for queued ones to finish
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.Start()
	wp.wg.Wait()
}

// GetStats returns the current counters
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		QueueLength:   len(wp.jobQueue),
		QueueCapacity: cap(wp.jobQueue),
		TotalJobs:     atomic.LoadInt64(&wp.totalJobs),
		CompletedJobs: atomic.LoadInt64(&wp.completedJobs),
		FailedJobs:    atomic.LoadInt64(&wp.failedJobs),
		ActiveWorkers: atomic.LoadInt64(&wp.activeWorkers),
	}
}
