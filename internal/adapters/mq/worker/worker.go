// Package worker runs queued fit jobs and records their outcome.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trendcast/internal/adapters/mq/queue"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Recorder tracks the lifecycle of a fit job.
type Recorder interface {
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker fits queued models.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	recorder   Recorder
	name       string
	fitTimeout time.Duration
	busy       *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		busy:     new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "fit job failed", logger.String("job_id", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after the job in progress.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process fits one job. Bookkeeping errors are logged and do not fail the job.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	w.busy.Add(1)
	defer w.busy.Add(-1)

	if job.Model == nil {
		err := fmt.Errorf("job %s carries no model", job.ID)
		w.fail(ctx, job, err)
		return err
	}
	if err := w.recorder.MarkRunning(ctx, job.ID); err != nil {
		w.logger.Warn(ctx, "mark running", logger.String("job_id", job.ID), logger.Error(err))
	}

	fitCtx := ctx
	if w.fitTimeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, w.fitTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Model.Fit(fitCtx, job.History); err != nil {
		w.fail(ctx, job, err)
		return fmt.Errorf("fit %s: %w", job.ID, err)
	}

	if err := w.recorder.MarkDone(ctx, job.ID); err != nil {
		w.logger.Warn(ctx, "mark done", logger.String("job_id", job.ID), logger.Error(err))
	}
	w.logger.Info(ctx, "fit job done",
		logger.String("job_id", job.ID),
		logger.Int("rows", len(job.History)),
		logger.Duration("took", time.Since(start)),
		logger.Duration("waited", start.Sub(job.SubmittedAt)),
	)
	return nil
}

func (w *InMemoryWorker) fail(ctx context.Context, job Job, cause error) {
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "fit_error")
	if err := w.recorder.MarkFailed(ctx, job.ID, cause); err != nil {
		w.logger.Warn(ctx, "mark failed", logger.String("job_id", job.ID), logger.Error(err))
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	busy    *atomic.Int64

	cancel       context.CancelFunc
	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one means one worker per
// CPU since fits are CPU bound. Options apply to every worker; names are
// assigned by the pool.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		busy:     new(atomic.Int64),
		cancel:   func() {},
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, recorder, wopts...)
		w.busy = p.busy
		p.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Busy returns the number of workers currently fitting.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateWorkerActiveCount(p.Busy())
		}
	}
}

// Stop stops all workers after their current job without draining the queue.
func (p *Pool) Stop() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	p.cancel()
}

// Shutdown closes the queue and lets workers drain it. When ctx expires
// first, running fits are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			if !timedOut {
				timedOut = true
				p.cancel()
			}
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	p.cancel()
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
