// Package dedupe maps client request keys to the model they created so a
// retried submission returns the original model instead of fitting twice.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/trendcast/pkg/metrics"
)

const defaultMaxSize = 50000

// Deduper records request keys for at-most-once submission.
type Deduper interface {
	// SeenAndRecord atomically binds key to id unless key is already bound.
	// It returns the bound id and whether key was seen before.
	SeenAndRecord(ctx context.Context, key, id string) (string, bool)

	// Unrecord releases key so the request can be retried, for example
	// when the queue rejected it.
	Unrecord(ctx context.Context, key string)

	// Lookup returns the id bound to key without changing recency.
	Lookup(ctx context.Context, key string) (string, bool)

	Size() int64
}

// inMemoryDeduper keeps the most recently used keys in a bounded LRU.
type inMemoryDeduper struct {
	mu      sync.Mutex
	keys    *lru.Cache[string, string]
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = defaultMaxSize
	}
	// size is positive so New cannot fail
	d.keys, _ = lru.New[string, string](d.maxSize)
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok, _ := d.keys.PeekOrAdd(key, id)
	if ok {
		metrics.RecordSubmissionDuplicate()
		// a repeat counts as use
		d.keys.Get(key)
		return prev, true
	}
	return id, false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys.Remove(key)
}

// Lookup implements Deduper.
func (d *inMemoryDeduper) Lookup(_ context.Context, key string) (string, bool) {
	return d.keys.Peek(key)
}

// Size returns the number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.keys.Len())
}
