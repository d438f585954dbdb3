package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/okian/trendcast/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				id, seen := d.SeenAndRecord(ctx, "req-1", "model-1")

				Convey("Then it binds the candidate id", func() {
					So(seen, ShouldBeFalse)
					So(id, ShouldEqual, "model-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, "req-1", "model-1")
				id, seen := d.SeenAndRecord(ctx, "req-1", "model-2")

				Convey("Then it returns the original id", func() {
					So(seen, ShouldBeTrue)
					So(id, ShouldEqual, "model-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is looked up", func() {
				d.SeenAndRecord(ctx, "req-1", "model-1")
				id, ok := d.Lookup(ctx, "req-1")
				_, missing := d.Lookup(ctx, "req-2")

				Convey("Then the binding is visible", func() {
					So(ok, ShouldBeTrue)
					So(id, ShouldEqual, "model-1")
					So(missing, ShouldBeFalse)
				})
			})
		})

		Convey("When unrecording keys", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "req-1", "model-1")

			Convey("And the key exists", func() {
				d.Unrecord(ctx, "req-1")

				Convey("Then it can be bound again", func() {
					So(d.Size(), ShouldEqual, 0)
					id, seen := d.SeenAndRecord(ctx, "req-1", "model-2")
					So(seen, ShouldBeFalse)
					So(id, ShouldEqual, "model-2")
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Unrecord(ctx, "req-unknown")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When the deduper is at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a", "1")
			d.SeenAndRecord(ctx, "b", "2")
			// repeating a makes b the least recently used
			d.SeenAndRecord(ctx, "a", "x")
			d.SeenAndRecord(ctx, "c", "3")

			Convey("Then the least recently used key is forgotten", func() {
				So(d.Size(), ShouldEqual, 2)
				_, okA := d.Lookup(ctx, "a")
				_, okB := d.Lookup(ctx, "b")
				_, okC := d.Lookup(ctx, "c")
				So(okA, ShouldBeTrue)
				So(okB, ShouldBeFalse)
				So(okC, ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When many goroutines race on the same key", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			winners := 0
			ids := map[string]struct{}{}
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id, seen := d.SeenAndRecord(ctx, "shared", fmt.Sprintf("model-%d", i))
					mu.Lock()
					defer mu.Unlock()
					if !seen {
						winners++
					}
					ids[id] = struct{}{}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one binding wins", func() {
				So(winners, ShouldEqual, 1)
				So(len(ids), ShouldEqual, 1)
			})
		})

		Convey("When goroutines record distinct keys", func() {
			var wg sync.WaitGroup
			for g := 0; g < 10; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("req-%d-%d", g, j), "m")
					}
				}(g)
			}
			wg.Wait()

			Convey("Then all keys are recorded", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given a deduper with edge cases", t, func() {
		ctx := context.Background()

		Convey("When recording very long keys", func() {
			d := dedupe.NewInMemoryDeduper()
			key := strings.Repeat("k", 10000)
			d.SeenAndRecord(ctx, key, "m")
			_, seen := d.SeenAndRecord(ctx, key, "n")

			Convey("Then they dedupe like any other key", func() {
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When max size is not positive", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
			for i := 0; i < 100; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("req-%d", i), "m")
			}

			Convey("Then the default bound applies", func() {
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
