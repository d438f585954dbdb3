// Package service provides the fit service that implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	fitqueue "github.com/okian/trendcast/internal/adapters/mq/queue"
	workerpool "github.com/okian/trendcast/internal/adapters/mq/worker"
	repository "github.com/okian/trendcast/internal/adapters/repository"
	"github.com/okian/trendcast/internal/domain/dedupe"
	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/metrics"
)

// Submission is a model to fit.
type Submission struct {
	// RequestID makes the submission idempotent when set.
	RequestID  string
	Definition forecaster.Definition
	History    []model.Observation
}

// SubmitResult identifies the model a submission created or matched.
type SubmitResult struct {
	ID        string
	Status    repository.Status
	Duplicate bool
}

// PredictQuery selects the rows to predict. Explicit Rows win; otherwise
// Periods future dates at Freq are generated, with Cap and Floor copied to
// every generated row. An empty query predicts the training history.
type PredictQuery struct {
	Rows           []model.Observation
	Periods        int
	Freq           string
	IncludeHistory bool
	Cap            *float64
	Floor          *float64
}

// Service owns the model store, the fit queue and its workers.
type Service struct {
	mu sync.RWMutex

	store   *repository.LRUStore
	deduper dedupe.Deduper
	queue   *fitqueue.InMemoryQueue
	pool    *workerpool.Pool

	workerCount     int
	queueSize       int
	dedupeSize      int
	modelCacheSize  int
	fitTimeout      time.Duration
	shutdownTimeout time.Duration
	modelDefaults   forecaster.Settings

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      50000,
		modelCacheSize:  256,
		fitTimeout:      5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		modelDefaults:   forecaster.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.modelDefaults.Validate(); err != nil {
		return fmt.Errorf("model defaults: %w", err)
	}

	store, err := repository.NewLRUStore(ctx, repository.WithSize(s.modelCacheSize))
	if err != nil {
		return err
	}
	s.store = store
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = fitqueue.NewInMemoryQueue(
		fitqueue.WithCapacity(s.queueSize),
		fitqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, workerpool.WithFitTimeout(s.fitTimeout))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "fit service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("modelCacheSize", s.modelCacheSize),
	)
	return nil
}

// Stop closes the queue, waits for queued fits and releases resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping fit service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "fit service stopped")
}

// NewDefinition returns a definition holding the configured model defaults.
func (s *Service) NewDefinition() forecaster.Definition {
	settings := s.modelDefaults
	settings.Changepoints = append([]time.Time(nil), s.modelDefaults.Changepoints...)
	return forecaster.Definition{Settings: settings}
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Submit validates the definition, stores an unfitted model and queues its
// fit. A repeated RequestID returns the model of the first submission while
// that model is still stored.
func (s *Service) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	if err := s.running(); err != nil {
		return SubmitResult{}, err
	}
	m, err := sub.Definition.Build()
	if err != nil {
		return SubmitResult{}, err
	}
	if len(sub.History) < 2 {
		return SubmitResult{}, fmt.Errorf("%w: history needs at least two rows, got %d", model.ErrValidation, len(sub.History))
	}

	id := uuid.NewString()
	if sub.RequestID != "" {
		bound, seen := s.deduper.SeenAndRecord(ctx, sub.RequestID, id)
		if seen {
			e, err := s.store.Get(ctx, bound)
			if err == nil {
				return SubmitResult{ID: e.ID, Status: e.Status, Duplicate: true}, nil
			}
			// the model was evicted; start over
			s.deduper.Unrecord(ctx, sub.RequestID)
			s.deduper.SeenAndRecord(ctx, sub.RequestID, id)
		}
	}

	release := func() {
		if sub.RequestID != "" {
			s.deduper.Unrecord(ctx, sub.RequestID)
		}
	}
	if err := s.store.Create(ctx, repository.Entry{ID: id, Model: m, Rows: len(sub.History)}); err != nil {
		release()
		return SubmitResult{}, err
	}

	job := fitqueue.Job{ID: id, Model: m, History: sub.History, SubmittedAt: time.Now()}
	if !s.queue.Enqueue(ctx, job) {
		_ = s.store.Delete(ctx, id)
		release()
		if s.queue.IsClosed() {
			return SubmitResult{}, fitqueue.ErrClosed
		}
		return SubmitResult{}, fitqueue.ErrFull
	}

	s.logger.Debug(ctx, "fit queued", logger.String("model_id", id), logger.Int("rows", len(sub.History)))
	return SubmitResult{ID: id, Status: repository.StatusPending}, nil
}

// Status returns the stored entry for id.
func (s *Service) Status(ctx context.Context, id string) (repository.Entry, error) {
	if err := s.running(); err != nil {
		return repository.Entry{}, err
	}
	return s.store.Get(ctx, id)
}

// fitted returns the model for id once its fit is done.
func (s *Service) fitted(ctx context.Context, id string) (*forecaster.Model, error) {
	e, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case repository.StatusDone:
		return e.Model, nil
	case repository.StatusFailed:
		return nil, fmt.Errorf("%w: model %s failed to fit: %s", model.ErrFitState, id, e.Err)
	default:
		return nil, fmt.Errorf("%w: model %s is %s", model.ErrFitState, id, e.Status)
	}
}

func (s *Service) rows(m *forecaster.Model, q PredictQuery) ([]model.Observation, error) {
	if q.Rows != nil {
		return q.Rows, nil
	}
	if q.Periods == 0 && !q.IncludeHistory {
		return nil, nil
	}
	freq, err := forecaster.ParseFrequency(q.Freq)
	if err != nil {
		return nil, err
	}
	dates, err := m.MakeFutureDates(q.Periods, freq, q.IncludeHistory)
	if err != nil {
		return nil, err
	}
	rows := forecaster.Dates(dates)
	for i := range rows {
		rows[i].Cap = q.Cap
		rows[i].Floor = q.Floor
	}
	return rows, nil
}

// Predict forecasts the rows q selects with model id.
func (s *Service) Predict(ctx context.Context, id string, q PredictQuery) ([]model.ForecastRecord, error) {
	m, err := s.fitted(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(m, q)
	if err != nil {
		return nil, err
	}
	return m.Predict(ctx, rows)
}

// Samples returns the raw simulated paths for the rows q selects.
func (s *Service) Samples(ctx context.Context, id string, q PredictQuery) (*model.PredictiveDraws, error) {
	m, err := s.fitted(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(m, q)
	if err != nil {
		return nil, err
	}
	return m.PredictiveSamples(ctx, rows)
}

// FutureDates lists periods dates after the training data of model id.
func (s *Service) FutureDates(ctx context.Context, id string, periods int, freq string, includeHistory bool) ([]time.Time, error) {
	m, err := s.fitted(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := forecaster.ParseFrequency(freq)
	if err != nil {
		return nil, err
	}
	return m.MakeFutureDates(periods, f, includeHistory)
}

// Delete drops model id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"modelCacheSize": s.modelCacheSize,
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		byStatus := s.store.CountByStatus(ctx)
		models := make(map[string]int, len(byStatus))
		for k, v := range byStatus {
			models[string(k)] = v
		}

		stats["queueLength"] = queueLen
		stats["busyWorkers"] = s.pool.Busy()
		stats["models"] = s.store.Count(ctx)
		stats["modelsByStatus"] = models
		stats["requestIds"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateModelsStored(s.store.Count(ctx))
		metrics.UpdateWorkerActiveCount(s.pool.Busy())
	}
	return stats
}
