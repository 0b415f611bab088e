package sink_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sink "github.com/formsense/repkit/internal/adapters/sink"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func repStart(i int) model.Event {
	return model.RepStartEvent(time.Now(), i)
}

func TestMemoryQueue(t *testing.T) {
	Convey("Given an in-memory event queue", t, func() {
		ctx := context.Background()

		Convey("When enqueuing and dequeuing", func() {
			q := sink.NewMemoryQueue(sink.WithCapacity(8), sink.WithBufferSize(8))
			So(q.Enqueue(ctx, repStart(1)), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 1)

			So(q.Close(), ShouldBeNil)
			got := <-q.Dequeue(ctx)

			Convey("Then the event comes back intact", func() {
				So(got.Kind, ShouldEqual, model.EventRepStart)
				So(got.RepIndex, ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			q := sink.NewMemoryQueue(sink.WithCapacity(2), sink.WithBufferSize(2))
			So(q.Enqueue(ctx, repStart(1)), ShouldBeTrue)
			So(q.Enqueue(ctx, repStart(2)), ShouldBeTrue)

			Convey("Then further enqueues are dropped, not blocked", func() {
				So(q.Enqueue(ctx, repStart(3)), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			q := sink.NewMemoryQueue()
			So(q.Close(), ShouldBeNil)

			Convey("Then it reports closed and rejects enqueues", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, repStart(1)), ShouldBeFalse)
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})

			Convey("And the dequeue channel drains and closes", func() {
				_, ok := <-q.Dequeue(ctx)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher with subscribed listeners", t, func() {
		ctx := context.Background()
		q := sink.NewMemoryQueue(sink.WithCapacity(16), sink.WithBufferSize(16))
		d := sink.NewDispatcher(q)

		var mu sync.Mutex
		var order []string
		record := func(name string) sink.Listener {
			return func(ctx context.Context, e model.Event) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
			}
		}

		Convey("When events flow through", func() {
			d.Subscribe(record("first"))
			d.Subscribe(record("second"))

			q.Enqueue(ctx, repStart(1))
			So(q.Close(), ShouldBeNil)
			d.Run(ctx)

			Convey("Then every listener sees the event in registration order", func() {
				mu.Lock()
				defer mu.Unlock()
				So(order, ShouldResemble, []string{"first", "second"})
			})
		})

		Convey("When a listener panics", func() {
			d.Subscribe(func(ctx context.Context, e model.Event) { panic("boom") })
			d.Subscribe(record("survivor"))

			q.Enqueue(ctx, repStart(1))
			q.Enqueue(ctx, repStart(2))
			So(q.Close(), ShouldBeNil)
			d.Run(ctx)

			Convey("Then delivery continues to the remaining listeners", func() {
				mu.Lock()
				defer mu.Unlock()
				So(order, ShouldResemble, []string{"survivor", "survivor"})
			})
		})

		Convey("When shutting down a running dispatcher", func() {
			done := make(chan struct{})
			go func() {
				d.Run(ctx)
				close(done)
			}()

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			Convey("Then Shutdown returns once the run loop exits", func() {
				So(d.Shutdown(shutdownCtx), ShouldBeNil)
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("run loop did not exit")
				}
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
