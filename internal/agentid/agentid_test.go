package agentid

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewProducesDistinctIdentifiers(t *testing.T) {
	Convey("Given two successive calls to New", t, func() {
		a := New()
		b := New()

		Convey("They are non-empty and differ", func() {
			So(a, ShouldNotBeEmpty)
			So(b, ShouldNotBeEmpty)
			So(a, ShouldNotEqual, b)
		})

		Convey("Each is a 16-character hex string", func() {
			So(len(a), ShouldEqual, 16)
			So(len(b), ShouldEqual, 16)
		})
	})
}

func TestHexIsDeterministic(t *testing.T) {
	Convey("Given the same input bytes", t, func() {
		in := []byte("clone-source")

		Convey("Hex returns the same digest every time", func() {
			So(Hex(in), ShouldEqual, Hex(in))
		})

		Convey("Different input bytes produce a different digest", func() {
			So(Hex(in), ShouldNotEqual, Hex([]byte("other-source")))
		})
	})
}
