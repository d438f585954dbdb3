package repository

import "time"

// Option applies a configuration option to the LRUStore.
type Option func(*LRUStore)

// WithSize sets the maximum number of stored models. The least recently
// used entry is evicted beyond it.
func WithSize(size int) Option {
	return func(s *LRUStore) {
		s.size = size
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *LRUStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithEvictCallback is called with the id of every entry leaving the store,
// whether evicted or deleted. It must not call back into the store.
func WithEvictCallback(fn func(id string)) Option {
	return func(s *LRUStore) {
		s.onEvict = fn
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LRUStore) {
		if now != nil {
			s.now = now
		}
	}
}
