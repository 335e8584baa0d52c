//go:build linux

package pool

import (
	"bytes"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// Walks the ring through a full page of data with a moving head, checking the
// contiguous views at every step.
func TestMagicRingWrapScenario(t *testing.T) {
	Convey("Given a fresh ring", t, func() {
		r, err := NewMagicRing()
		So(err, ShouldBeNil)
		defer r.Close()

		So(r.Pos(), ShouldEqual, 0)
		So(r.Len(), ShouldEqual, 0)

		Convey("a short message pushes and pops cleanly", func() {
			msg := []byte("something to be written")
			So(r.Push(msg), ShouldEqual, 23)
			So(r.Slice(), ShouldResemble, msg)
			So(len(r.AvailSlice()), ShouldEqual, 4073)

			So(r.CommitPop(23), ShouldBeNil)
			So(r.Pos(), ShouldEqual, 23)
			So(r.Len(), ShouldEqual, 0)

			Convey("a full page then fills from the displaced head", func() {
				page := bytes.Repeat([]byte{'A'}, Size)
				So(r.Push(page), ShouldEqual, Size)
				So(r.Slice(), ShouldResemble, page)
				So(len(r.AvailSlice()), ShouldEqual, 0)

				So(r.Push(msg), ShouldEqual, 0)

				So(r.CommitPop(2048), ShouldBeNil)
				So(r.Pos(), ShouldEqual, 2071)
				So(r.Len(), ShouldEqual, 2048)

				So(r.CommitPop(2048), ShouldBeNil)
				So(r.Pos(), ShouldEqual, 23)
				So(r.Len(), ShouldEqual, 0)
				So(r.Slice(), ShouldBeEmpty)
				So(r.AvailSlice(), ShouldResemble, page)
			})
		})
	})
}

// Randomized commit drive: the ring must agree with a reference model and its
// two views must always partition the page.
func TestMagicRingCommitProperty(t *testing.T) {
	Convey("Given a ring and a deterministic op stream", t, func() {
		r, err := NewMagicRing()
		So(err, ShouldBeNil)
		defer r.Close()

		rng := rand.New(rand.NewSource(42))
		fill := 0
		for i := 0; i < 5000; i++ {
			if rng.Intn(2) == 0 {
				n := rng.Intn(Size + 1)
				if n <= Size-fill {
					So(r.CommitPush(n), ShouldBeNil)
					fill += n
				} else {
					So(r.CommitPush(n), ShouldNotBeNil)
				}
			} else {
				n := rng.Intn(Size + 1)
				if n <= fill {
					So(r.CommitPop(n), ShouldBeNil)
					fill -= n
				} else {
					So(r.CommitPop(n), ShouldNotBeNil)
				}
			}

			So(r.Len(), ShouldEqual, fill)
			So(r.Len()+r.Free(), ShouldEqual, Size)
			So(len(r.Slice()), ShouldEqual, fill)
			So(len(r.AvailSlice()), ShouldEqual, Size-fill)
			So(r.Pos(), ShouldBeLessThan, Size)
		}
	})
}
