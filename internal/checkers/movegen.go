package checkers

// manForwardDirs and directions (squares.go) fix the deterministic
// enumeration order: row-major over source square, then NE, NW, SE, SW
// for each square. Men use only the two forward directions: they never
// move or capture backward.
var manForwardDirs = [2]Direction{NE, NW}

// LegalMoves enumerates every legal move for the side to move (always
// "ally" from the current perspective), applying the mandatory-capture
// rule: if any capture exists anywhere on the board, only capture
// moves are returned.
func (s GameState) LegalMoves() []Move {
	var captures, simple []Move

	for sq := 1; sq <= NumSquares; sq++ {
		if !s.isAlly(sq) {
			continue
		}
		king := s.At(sq) == AllyKing

		captures = append(captures, s.captureChains(sq, king)...)

		if king {
			simple = append(simple, s.kingSlides(sq)...)
		} else {
			simple = append(simple, s.manSteps(sq)...)
		}
	}

	if len(captures) > 0 {
		return captures
	}
	return simple
}

func (s GameState) manSteps(sq int) []Move {
	var out []Move
	for _, d := range manForwardDirs {
		n := neighbor(sq, d)
		if n != 0 && s.isEmpty(n) {
			out = append(out, Move{Subs: []SubMove{{Start: sq, End: n, Promotes: backRank(n)}}})
		}
	}
	return out
}

func (s GameState) kingSlides(sq int) []Move {
	var out []Move
	for _, d := range directions {
		cur := sq
		for {
			n := neighbor(cur, d)
			if n == 0 || !s.isEmpty(n) {
				break
			}
			out = append(out, Move{Subs: []SubMove{{Start: sq, End: n}}})
			cur = n
		}
	}
	return out
}

// slideToBlocker walks from sq in direction d across empty squares and
// returns the first non-empty square encountered, or 0 if the edge of
// the board is reached first.
func (s GameState) slideToBlocker(sq int, d Direction) int {
	cur := sq
	for {
		n := neighbor(cur, d)
		if n == 0 {
			return 0
		}
		if !s.isEmpty(n) {
			return n
		}
		cur = n
	}
}

// emptyRun returns every empty square reachable by sliding from sq in
// direction d, in increasing-distance order, stopping at the first
// blocker or the board edge.
func (s GameState) emptyRun(sq int, d Direction) []int {
	var out []int
	cur := sq
	for {
		n := neighbor(cur, d)
		if n == 0 || !s.isEmpty(n) {
			break
		}
		out = append(out, n)
		cur = n
	}
	return out
}

// captureChains enumerates every maximal capture chain starting with
// the ally piece on sq, recursively taking further captures
// (possibly promoted mid-sequence) until no further
// capture is available from the landing square.
func (s GameState) captureChains(sq int, king bool) []Move {
	var results []Move

	var recurse func(cur GameState, at int, isKing bool, subs []SubMove)
	recurse = func(cur GameState, at int, isKing bool, subs []SubMove) {
		found := false

		tryStep := func(sub SubMove) {
			found = true
			next, nextKing := cur.applySub(sub, isKing)
			nextSubs := append(append([]SubMove{}, subs...), sub)
			recurse(next, sub.End, nextKing, nextSubs)
		}

		if isKing {
			for _, d := range directions {
				blocker := cur.slideToBlocker(at, d)
				if blocker == 0 || !cur.isOpponent(blocker) {
					continue
				}
				for _, land := range cur.emptyRun(blocker, d) {
					tryStep(SubMove{Start: at, End: land, Captured: blocker, Promotes: backRank(land) && !isKing})
				}
			}
		} else {
			for _, d := range manForwardDirs {
				mid := neighbor(at, d)
				if mid == 0 || !cur.isOpponent(mid) {
					continue
				}
				land := neighbor(mid, d)
				if land == 0 || !cur.isEmpty(land) {
					continue
				}
				tryStep(SubMove{Start: at, End: land, Captured: mid, Promotes: backRank(land)})
			}
		}

		if !found && len(subs) > 0 {
			results = append(results, Move{Subs: subs})
		}
	}

	recurse(s, sq, king, nil)
	return results
}
