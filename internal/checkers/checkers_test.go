package checkers

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// TestStartPositionLegalMoves checks the legal move count from the
// canonical start position.
func TestStartPositionLegalMoves(t *testing.T) {
	Convey("Given the canonical start position", t, func() {
		s := NewStart()
		moves := s.LegalMoves()

		Convey("There are exactly 7 legal man moves", func() {
			So(len(moves), ShouldEqual, 7)
		})

		Convey("Each move is a single forward sub-move", func() {
			for _, m := range moves {
				So(len(m.Subs), ShouldEqual, 1)
				So(m.IsCapture(), ShouldBeFalse)
			}
		})
	})
}

// TestForcedCaptureChain checks that a multi-jump capture is mandatory
// and enumerated as one chained move.
func TestForcedCaptureChain(t *testing.T) {
	Convey("Given a white man on 12 and black men on 16 and 23", t, func() {
		var s GameState
		s.AllyMen = bit(12)
		s.OppMen = bit(16) | bit(23)

		moves := s.LegalMoves()

		Convey("Exactly one move is legal: the double jump 12x19x26", func() {
			So(len(moves), ShouldEqual, 1)
			m := moves[0]
			So(m.Start(), ShouldEqual, 12)
			So(m.End(), ShouldEqual, 26)
			So(m.CapturedSquares(), ShouldResemble, []int{16, 23})
		})
	})
}

// TestPromotionOnCapture checks that a man promotes to king immediately
// upon landing on the back rank mid-capture.
func TestPromotionOnCapture(t *testing.T) {
	Convey("Given a white man on 22 and a black man on 26, back rank clear", t, func() {
		var s GameState
		s.AllyMen = bit(22)
		s.OppMen = bit(26)

		moves := s.LegalMoves()
		So(len(moves), ShouldEqual, 1)

		Convey("After make_move with final=true, the piece at 31 is an ally king", func() {
			next, err := s.MakeMove(moves[0])
			So(err, ShouldBeNil)
			So(next.At(31), ShouldEqual, AllyKing)
			So(next.At(22), ShouldEqual, Empty)
			So(next.At(26), ShouldEqual, Empty)
		})
	})
}

func TestInvertIsInvolution(t *testing.T) {
	Convey("Given the start position", t, func() {
		s := NewStart()
		Convey("Invert(Invert(s)) == s", func() {
			So(s.Invert().Invert().Equal(s), ShouldBeTrue)
		})
	})
	Convey("Given an arbitrary midgame-shaped position", t, func() {
		var s GameState
		s.AllyMen = bit(9) | bit(10)
		s.AllyKings = bit(30)
		s.OppMen = bit(20)
		s.OppKings = bit(5)
		Convey("Invert(Invert(s)) == s", func() {
			So(s.Invert().Invert().Equal(s), ShouldBeTrue)
		})
		Convey("Invert swaps ally and opponent piece counts", func() {
			inv := s.Invert()
			So(popcount(inv.OppMen), ShouldEqual, popcount(s.AllyMen))
			So(popcount(inv.OppKings), ShouldEqual, popcount(s.AllyKings))
			So(popcount(inv.AllyMen), ShouldEqual, popcount(s.OppMen))
		})
	})
}

func TestMandatoryCapture(t *testing.T) {
	Convey("Given a position where a capture exists", t, func() {
		var s GameState
		s.AllyMen = bit(12) | bit(9)
		s.OppMen = bit(16)

		moves := s.LegalMoves()

		Convey("No legal move is a non-capture", func() {
			for _, m := range moves {
				So(m.IsCapture(), ShouldBeTrue)
			}
		})
	})
}

func TestEmptyLegalMovesIsTerminal(t *testing.T) {
	Convey("Given a position with no ally pieces", t, func() {
		var s GameState
		s.OppMen = bit(1)
		Convey("legal_moves is empty", func() {
			So(s.LegalMoves(), ShouldBeEmpty)
		})
	})
}

func popcount(x uint32) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}
