package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/trendcast/internal/adapters/mq/queue"
	worker "github.com/okian/trendcast/internal/adapters/mq/worker"
	model "github.com/okian/trendcast/internal/domain/model"
	logging "github.com/okian/trendcast/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 128)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { mq.jobs <- j }

type mockFitter struct {
	err   error
	block bool
	mu    sync.Mutex
	rows  int
	calls int
}

func (f *mockFitter) Fit(ctx context.Context, history []model.Observation) error {
	f.mu.Lock()
	f.calls++
	f.rows = len(history)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *mockFitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mockRecorder struct {
	mu     sync.Mutex
	status map[string]string
	causes map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{status: map[string]string{}, causes: map[string]error{}}
}

func (r *mockRecorder) set(id, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[id] = s
}

func (r *mockRecorder) MarkRunning(_ context.Context, id string) error {
	r.set(id, "running")
	return nil
}

func (r *mockRecorder) MarkDone(_ context.Context, id string) error {
	r.set(id, "done")
	return nil
}

func (r *mockRecorder) MarkFailed(_ context.Context, id string, cause error) error {
	r.mu.Lock()
	r.causes[id] = cause
	r.mu.Unlock()
	r.set(id, "failed")
	return nil
}

func (r *mockRecorder) get(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[id]
}

func (r *mockRecorder) cause(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.causes[id]
}

func newJob(id string, f queue.Fitter) queue.Job {
	return queue.Job{
		ID:          id,
		Model:       f,
		History:     []model.Observation{{DS: time.Now(), Y: model.Float(1)}, {DS: time.Now().Add(time.Hour), Y: model.Float(2)}},
		SubmittedAt: time.Now(),
	}
}

// waitFor polls until cond holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newMockRecorder()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"), worker.WithFitTimeout(time.Second))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, rec)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And the fit succeeds", func() {
				f := &mockFitter{}
				q.add(newJob("job-1", f))

				convey.Convey("Then the job is marked done", func() {
					convey.So(waitFor(func() bool { return rec.get("job-1") == "done" }), convey.ShouldBeTrue)
					convey.So(f.callCount(), convey.ShouldEqual, 1)
					convey.So(f.rows, convey.ShouldEqual, 2)
				})
			})

			convey.Convey("And the fit fails", func() {
				boom := errors.New("fit error")
				q.add(newJob("job-2", &mockFitter{err: boom}))

				convey.Convey("Then the job is marked failed with the cause", func() {
					convey.So(waitFor(func() bool { return rec.get("job-2") == "failed" }), convey.ShouldBeTrue)
					convey.So(errors.Is(rec.cause("job-2"), boom), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And the job carries no model", func() {
				q.add(queue.Job{ID: "job-3"})

				convey.Convey("Then the job is marked failed", func() {
					convey.So(waitFor(func() bool { return rec.get("job-3") == "failed" }), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When a fit outlives the fit timeout", func() {
			w := worker.NewInMemoryWorker(q, rec, worker.WithFitTimeout(20*time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.add(newJob("slow", &mockFitter{block: true}))

			convey.Convey("Then the job fails with a deadline error", func() {
				convey.So(waitFor(func() bool { return rec.get("slow") == "failed" }), convey.ShouldBeTrue)
				convey.So(errors.Is(rec.cause("slow"), context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the queue channel is closed", func() {
			w := worker.NewInMemoryWorker(q, rec)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-done:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker Pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newMockRecorder()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, rec)

			convey.Convey("Then it has at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
				convey.So(pool.Busy(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When starting a pool", func() {
			pool := worker.NewPool(2, q, rec)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			convey.Convey("And processing multiple jobs", func() {
				for i := 0; i < 3; i++ {
					q.add(newJob(fmt.Sprintf("job-%d", i), &mockFitter{}))
				}

				convey.Convey("Then all jobs are done", func() {
					for i := 0; i < 3; i++ {
						id := fmt.Sprintf("job-%d", i)
						convey.So(waitFor(func() bool { return rec.get(id) == "done" }), convey.ShouldBeTrue)
					}
				})
			})

			convey.Convey("And shutting down with queued jobs", func() {
				for i := 0; i < 5; i++ {
					q.add(newJob(fmt.Sprintf("drain-%d", i), &mockFitter{}))
				}
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then the queue is drained first", func() {
					convey.So(err, convey.ShouldBeNil)
					for i := 0; i < 5; i++ {
						convey.So(rec.get(fmt.Sprintf("drain-%d", i)), convey.ShouldEqual, "done")
					}
				})
			})

			convey.Convey("And shutdown expires during a fit", func() {
				q.add(newJob("stuck", &mockFitter{block: true}))
				convey.So(waitFor(func() bool { return rec.get("stuck") == "running" }), convey.ShouldBeTrue)

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer shutdownCancel()
				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then the running fit is cancelled", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(waitFor(func() bool { return rec.get("stuck") == "failed" }), convey.ShouldBeTrue)
				})
			})
		})

		convey.Convey("When stopping a pool", func() {
			pool := worker.NewPool(2, q, rec)
			pool.Start(context.Background())
			pool.Stop()

			convey.Convey("Then queued jobs are left alone", func() {
				q.add(newJob("late", &mockFitter{}))
				time.Sleep(20 * time.Millisecond)
				convey.So(rec.get("late"), convey.ShouldEqual, "")
			})
		})
	})
}

func TestWorkerConcurrency(t *testing.T) {
	convey.Convey("Given a pool with multiple workers", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newMockRecorder()
		pool := worker.NewPool(4, q, rec)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many producers submit jobs", func() {
			const jobCount = 100
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < jobCount/5; j++ {
						q.add(newJob(fmt.Sprintf("job-%d-%d", p, j), &mockFitter{}))
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every job is fitted once", func() {
				convey.So(waitFor(func() bool {
					for i := 0; i < 5; i++ {
						for j := 0; j < jobCount/5; j++ {
							if rec.get(fmt.Sprintf("job-%d-%d", i, j)) != "done" {
								return false
							}
						}
					}
					return true
				}), convey.ShouldBeTrue)
			})
		})
	})
}
