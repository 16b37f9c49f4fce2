package dedupe_test

import (
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/tenderwatch/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording release IDs", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the ID is new", func() {
				seen := d.SeenAndRecord("rel-1")

				Convey("Then it should return false and record the ID", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the ID was already seen", func() {
				d.SeenAndRecord("rel-1")
				seen := d.SeenAndRecord("rel-1")

				Convey("Then it should return true and not grow", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the ID is unrecorded", func() {
				d.SeenAndRecord("rel-1")
				d.Unrecord("rel-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord("rel-1"), ShouldBeFalse)
				})
			})

			Convey("And the deduper is reset", func() {
				d.SeenAndRecord("rel-1")
				d.SeenAndRecord("rel-2")
				d.Reset()

				Convey("Then every ID should be forgotten", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord("rel-2"), ShouldBeFalse)
				})
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord("a")
			d.SeenAndRecord("b")
			d.SeenAndRecord("c")

			Convey("Then the oldest ID should be evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord("b"), ShouldBeTrue)
				So(d.SeenAndRecord("c"), ShouldBeTrue)
				So(d.SeenAndRecord("a"), ShouldBeFalse)
			})
		})

		Convey("When an unrecorded slot is reused in bounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord("a")
			d.Unrecord("a")
			d.SeenAndRecord("b")
			d.SeenAndRecord("c")

			Convey("Then live IDs should be unaffected", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord("b"), ShouldBeTrue)
			})
		})

		Convey("When recording concurrently", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(fmt.Sprintf("rel-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each ID should be new exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
