// Package queue runs queued extraction jobs on a fixed pool of workers. The
// batch record of each job is its only status projection.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/store"
)

var (
	// ErrQueueFull is returned by Submit when every slot is taken.
	ErrQueueFull = eris.New("queue: full")
	// ErrQueueStopped is returned by Submit after Stop.
	ErrQueueStopped = eris.New("queue: stopped")
)

const (
	defaultWorkers  = 2
	defaultCapacity = 64
)

// Runner runs the pipeline for one conversation. *pipeline.Orchestrator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, text string, progress pipeline.Progress) ([]model.Lead, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, text string, progress pipeline.Progress) ([]model.Lead, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, text string, progress pipeline.Progress) ([]model.Lead, error) {
	return f(ctx, text, progress)
}

// Job is one queued extraction. BatchID must name an existing pending batch.
type Job struct {
	BatchID string
	Text    string
	Runner  Runner
}

// Queue is a bounded job channel drained by a fixed number of workers.
type Queue struct {
	store   store.BatchStore
	workers int
	jobs    chan Job

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of workers started by Start.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity sets how many jobs may wait for a worker.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.jobs = make(chan Job, n)
		}
	}
}

// New creates a Queue that reports job progress to st.
func New(st store.BatchStore, opts ...Option) *Queue {
	q := &Queue{
		store:   st,
		workers: defaultWorkers,
		jobs:    make(chan Job, defaultCapacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start spawns the workers. Jobs run with ctx; cancelling it makes pending
// jobs fail fast.
func (q *Queue) Start(ctx context.Context) {
	zap.L().Info("queue: starting workers",
		zap.Int("workers", q.workers),
		zap.Int("capacity", cap(q.jobs)),
	)
	for i := range q.workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				q.run(ctx, i, job)
			}
		}()
	}
}

// Submit enqueues job without blocking.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return eris.Wrapf(ErrQueueFull, "queue: batch %s", job.BatchID)
	}
}

// Len returns the number of jobs waiting for a worker.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Stop rejects new jobs, lets the workers drain the remaining ones and waits
// for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	zap.L().Info("queue: stopped")
}

func (q *Queue) run(ctx context.Context, worker int, job Job) {
	log := zap.L().With(zap.String("batch_id", job.BatchID), zap.Int("worker", worker))
	tracker := pipeline.NewTracker(q.store, job.BatchID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("queue: job panicked", zap.Any("panic", r))
			msg := fmt.Sprintf("job panicked: %v", r)
			if err := tracker.Fail(context.WithoutCancel(ctx), msg); err != nil {
				log.Warn("queue: record failure", zap.Error(err))
			}
		}
	}()

	if job.Runner == nil {
		if err := tracker.Fail(context.WithoutCancel(ctx), "job has no runner"); err != nil {
			log.Warn("queue: record failure", zap.Error(err))
		}
		return
	}

	leads, err := job.Runner.Run(ctx, job.Text, tracker)
	if err != nil {
		log.Error("queue: job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("queue: job complete",
		zap.Int("leads", len(leads)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
