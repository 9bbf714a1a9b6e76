package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	logging "github.com/okian/tally/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockRecorder struct {
	mu       sync.Mutex
	recorded map[string]model.Attempt
	errs     map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		recorded: make(map[string]model.Attempt),
		errs:     make(map[string]error),
	}
}

func (m *mockRecorder) Record(_ context.Context, a model.Attempt) error { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[a.ID]; ok {
		return err
	}
	if _, ok := m.recorded[a.ID]; ok {
		return repository.ErrDuplicate
	}
	m.recorded[a.ID] = a
	return nil
}

func (m *mockRecorder) setError(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[id] = err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

func attempt(id string) model.Attempt {
	return model.Attempt{ID: id, UserID: "u1", SubjectID: "math", Score: 1, Total: 2, TS: time.Now()}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rec := newMockRecorder()

		var failedMu sync.Mutex
		var failed []string
		w := worker.NewInMemoryWorker(q, rec,
			worker.WithName("test-worker"),
			worker.WithFailureHandler(func(_ context.Context, a model.Attempt, _ error) {
				failedMu.Lock()
				failed = append(failed, a.ID)
				failedMu.Unlock()
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an attempt is queued", func() {
			_ = q.Enqueue(ctx, attempt("a1"))

			convey.Convey("Then it should be recorded", func() {
				convey.So(waitFor(func() bool { return rec.count() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When recording fails", func() {
			rec.setError("bad", errors.New("disk full"))
			_ = q.Enqueue(ctx, attempt("bad"))

			convey.Convey("Then the failure handler should see it", func() {
				convey.So(waitFor(func() bool {
					failedMu.Lock()
					defer failedMu.Unlock()
					return len(failed) == 1
				}), convey.ShouldBeTrue)
				convey.So(rec.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a duplicate is queued", func() {
			_ = q.Enqueue(ctx, attempt("a1"))
			_ = q.Enqueue(ctx, attempt("a1"))
			_ = q.Close()

			convey.Convey("Then it should be ignored without a failure", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(rec.count(), convey.ShouldEqual, 1)
				convey.So(failed, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then the worker should stop", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		rec := newMockRecorder()

		convey.Convey("When creating a pool with the default count", func() {
			pool := worker.NewPool(0, q, rec)

			convey.Convey("Then it should size itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When shutting down a pool that never started", func() {
			pool := worker.NewPool(2, q, rec)

			convey.Convey("Then it should return immediately", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				pool.Stop()
			})
		})

		convey.Convey("When many producers feed the pool", func() {
			pool := worker.NewPool(4, q, rec)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const producers, perProducer = 5, 40
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						for q.Enqueue(ctx, attempt(fmt.Sprintf("a-%d-%d", p, j))) != nil {
							time.Sleep(time.Millisecond)
						}
					}
				}(i)
			}
			wg.Wait()

			err := pool.Shutdown(context.Background())

			convey.Convey("Then shutdown should drain every attempt", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.count(), convey.ShouldEqual, producers*perProducer)
				convey.So(pool.Processed(), convey.ShouldEqual, int64(producers*perProducer))
				convey.So(pool.Failed(), convey.ShouldEqual, int64(0))
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a started pool is stopped", func() {
			pool := worker.NewPool(2, q, rec)
			pool.Start(context.Background())
			pool.Stop()

			convey.Convey("Then the queue should stay open", func() {
				convey.So(q.IsClosed(), convey.ShouldBeFalse)
			})
		})
	})
}
