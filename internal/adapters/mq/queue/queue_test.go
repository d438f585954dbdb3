package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
)

type nopFitter struct{}

func (nopFitter) Fit(context.Context, []model.Observation) error { return nil }

func job(id string) Job {
	return Job{
		ID:          id,
		Model:       nopFitter{},
		History:     []model.Observation{{DS: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Y: model.Float(1)}},
		SubmittedAt: time.Now(),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, job("job1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "job1" {
		t.Errorf("expected job1, got %v", got.ID)
	}
	if len(got.History) != 1 {
		t.Errorf("expected history to travel with the job, got %d rows", len(got.History))
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("job1")) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, job("job2")) {
		t.Error("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job("job3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_BufferNeverBelowCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4), WithBufferSize(1))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if !q.Enqueue(ctx, job(fmt.Sprintf("job%d", i))) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, job("job1")) {
		t.Error("expected enqueue to fail on a cancelled context")
	}
	if l := q.Len(context.Background()); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producers := 10
	perProducer := 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, job(fmt.Sprintf("job%d_%d", id, j))) {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	var mu sync.Mutex
	seen := make(map[string]struct{}, producers*perProducer)
	jobs := q.Dequeue(ctx)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for j := range jobs {
			mu.Lock()
			seen[j.ID] = struct{}{}
			n := len(seen)
			mu.Unlock()
			if n == producers*perProducer {
				return
			}
		}
	}()

	wg.Wait()
	select {
	case <-consumed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consumers")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct jobs, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("job1")) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, job("job2")) {
		t.Error("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, job("job3")) {
		t.Error("expected enqueue to fail after closing")
	}

	// queued jobs drain before the channel closes
	var drained []string
	jobs := q.Dequeue(ctx)
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case j, ok := <-jobs:
			if !ok {
				done = true
				break
			}
			drained = append(drained, j.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if len(drained) != 2 || drained[0] != "job1" || drained[1] != "job2" {
		t.Errorf("expected [job1 job2], got %v", drained)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
