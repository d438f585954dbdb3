package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts ...Option) *LRUStore {
	t.Helper()
	s, err := NewLRUStore(context.Background(), opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLRUStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(func() time.Time { return fixed }))

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Create(ctx, Entry{ID: "m1", Rows: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	e, err := store.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status != StatusPending {
		t.Errorf("expected pending, got %s", e.Status)
	}
	if e.Rows != 10 {
		t.Errorf("expected 10 rows, got %d", e.Rows)
	}
	if !e.CreatedAt.Equal(fixed) || !e.UpdatedAt.Equal(fixed) {
		t.Errorf("expected timestamps %v, got %v / %v", fixed, e.CreatedAt, e.UpdatedAt)
	}

	if err := store.Create(ctx, Entry{ID: "m1"}); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLRUStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"ok", "bad"} {
		if err := store.Create(ctx, Entry{ID: id}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.MarkRunning(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := store.MarkDone(ctx, "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.MarkFailed(ctx, "bad", errors.New("too few rows")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, _ := store.Get(ctx, "ok")
	if ok.Status != StatusDone || ok.Err != "" {
		t.Errorf("expected done without error, got %s %q", ok.Status, ok.Err)
	}
	bad, _ := store.Get(ctx, "bad")
	if bad.Status != StatusFailed || bad.Err != "too few rows" {
		t.Errorf("expected failed with cause, got %s %q", bad.Status, bad.Err)
	}

	// terminal entries never change
	if err := store.MarkRunning(ctx, "ok"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if err := store.MarkDone(ctx, "bad"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if err := store.MarkDone(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	counts := store.CountByStatus(ctx)
	if counts[StatusDone] != 1 || counts[StatusFailed] != 1 || counts[StatusPending] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestLRUStore_Eviction(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var evicted []string
	store := newTestStore(t, WithSize(2), WithEvictCallback(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, id)
	}))

	_ = store.Create(ctx, Entry{ID: "a"})
	_ = store.Create(ctx, Entry{ID: "b"})
	// reading a makes b the least recently used
	if _, err := store.Get(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = store.Create(ctx, Entry{ID: "c"})

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected b to be evicted, got %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(evicted) != "[b a]" {
		t.Errorf("expected [b a] to leave the store, got %v", evicted)
	}
}

func TestLRUStore_InvalidSize(t *testing.T) {
	if _, err := NewLRUStore(context.Background(), WithSize(0)); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestLRUStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_ = store.Create(ctx, Entry{ID: "m"})

	e, _ := store.Get(ctx, "m")
	e.Status = StatusDone
	again, _ := store.Get(ctx, "m")
	if again.Status != StatusPending {
		t.Errorf("expected stored entry to be unaffected, got %s", again.Status)
	}
}

func TestLRUStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithSize(1000))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("m-%d-%d", g, j)
				if err := store.Create(ctx, Entry{ID: id}); err != nil {
					t.Errorf("create %s: %v", id, err)
					return
				}
				_ = store.MarkRunning(ctx, id)
				_ = store.MarkDone(ctx, id)
				_, _ = store.Get(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	if counts := store.CountByStatus(ctx); counts[StatusDone] != 500 {
		t.Errorf("expected 500 done, got %v", counts)
	}
}
