package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/trendcast/pkg/metrics"
)

const (
	defaultStoreSize             = 256
	defaultMetricsUpdateInterval = 5 * time.Second
)

// LRUStore is a bounded in-memory Store. Reads refresh recency, status
// updates do not.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Entry]

	size                  int
	metricsUpdateInterval time.Duration
	onEvict               func(id string)
	now                   func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLRUStore constructs a store and starts its metrics updater, which runs
// until ctx is done or Close is called.
func NewLRUStore(ctx context.Context, opts ...Option) (*LRUStore, error) {
	s := &LRUStore{
		size:                  defaultStoreSize,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, s.size)
	}

	cache, err := lru.NewWithEvict(s.size, s.evicted)
	if err != nil {
		return nil, fmt.Errorf("model cache: %w", err)
	}
	s.cache = cache

	metrics.UpdateModelsStored(0)
	s.startMetricsUpdater(ctx)
	return s, nil
}

// evicted runs for capacity evictions and Delete alike, while the store
// lock is held. Only capacity evictions are counted, in Create.
func (s *LRUStore) evicted(id string, _ *Entry) {
	if s.onEvict != nil {
		s.onEvict(id)
	}
}

// Create implements Store.Create.
func (s *LRUStore) Create(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache.Contains(e.ID) {
		return fmt.Errorf("%w: %s", ErrExists, e.ID)
	}
	now := s.now()
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if s.cache.Add(e.ID, &e) {
		metrics.RecordModelEvicted()
	}
	metrics.UpdateModelsStored(s.cache.Len())
	return nil
}

// Get implements Store.Get.
func (s *LRUStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *e, nil
}

// MarkRunning implements Store.MarkRunning.
func (s *LRUStore) MarkRunning(_ context.Context, id string) error {
	return s.transition(id, StatusRunning, "")
}

// MarkDone implements Store.MarkDone.
func (s *LRUStore) MarkDone(_ context.Context, id string) error {
	return s.transition(id, StatusDone, "")
}

// MarkFailed implements Store.MarkFailed.
func (s *LRUStore) MarkFailed(_ context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.transition(id, StatusFailed, msg)
}

// transition moves an entry forward. Terminal entries never change.
func (s *LRUStore) transition(id string, to Status, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Peek(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, e.Status)
	}
	e.Status = to
	e.Err = msg
	e.UpdatedAt = s.now()
	return nil
}

// Delete implements Store.Delete.
func (s *LRUStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.UpdateModelsStored(s.cache.Len())
	return nil
}

// Count implements Store.Count.
func (s *LRUStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// CountByStatus implements Store.CountByStatus.
func (s *LRUStore) CountByStatus(_ context.Context) map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[Status]int{StatusPending: 0, StatusRunning: 0, StatusDone: 0, StatusFailed: 0}
	for _, e := range s.cache.Values() {
		out[e.Status]++
	}
	return out
}

// Close stops the metrics updater.
func (s *LRUStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *LRUStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateModelsStored(s.cache.Len())
			}
		}
	}()
}
