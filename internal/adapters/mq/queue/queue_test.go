package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with the default capacity", t, func() {
		q := NewInMemoryQueue()
		ctx := context.Background()

		Convey("When one job is enqueued", func() {
			ok := q.Enqueue(ctx, NewJob(ReasonManual, true, 0))

			Convey("Then it should be accepted and readable", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
				j := <-q.Dequeue(ctx)
				So(j.Reason, ShouldEqual, ReasonManual)
				So(j.Force, ShouldBeTrue)
				So(j.ID, ShouldNotBeEmpty)
				So(q.Len(ctx), ShouldEqual, 0)
			})

			Convey("Then a second pending job should be dropped", func() {
				So(q.Enqueue(ctx, NewJob(ReasonPoll, false, 0)), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When a job without a timestamp is enqueued", func() {
			So(q.Enqueue(ctx, Job{Reason: ReasonRetry, Delay: time.Second}), ShouldBeTrue)

			Convey("Then it should be stamped", func() {
				j := <-q.Dequeue(ctx)
				So(j.EnqueuedAt.IsZero(), ShouldBeFalse)
				So(j.Delay, ShouldEqual, time.Second)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue should fail", func() {
				So(q.Enqueue(cctx, NewJob(ReasonManual, false, 0)), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, NewJob(ReasonStartup, false, 0)), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then new jobs should be rejected and pending ones drained", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, NewJob(ReasonManual, false, 0)), ShouldBeFalse)
				j, ok := <-q.Dequeue(ctx)
				So(ok, ShouldBeTrue)
				So(j.Reason, ShouldEqual, ReasonStartup)
				_, ok = <-q.Dequeue(ctx)
				So(ok, ShouldBeFalse)
				So(q.Close(), ShouldBeNil)
			})
		})
	})

	Convey("Given a larger queue under concurrent producers", t, func() {
		q := NewInMemoryQueue(WithCapacity(50))
		ctx := context.Background()
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if q.Enqueue(ctx, NewJob(ReasonPoll, false, 0)) {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly the capacity should be accepted", func() {
			So(accepted, ShouldEqual, 50)
			So(q.Len(ctx), ShouldEqual, 50)
		})
	})
}
