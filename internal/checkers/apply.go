package checkers

import (
	"fmt"

	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// applySub mutates the ally-piece planes and the captured opponent
// plane for one sub-move, and reports whether the moving piece is a
// king after this step (it may have just promoted). This is the one
// place that mutates planes for a single step, shared by legal-move
// generation (internally, on a scratch copy) and MakeMove, so both
// stay consistent.
func (s GameState) applySub(sub SubMove, kingBefore bool) (next GameState, kingAfter bool) {
	next = s
	if kingBefore {
		next.AllyKings &^= bit(sub.Start)
	} else {
		next.AllyMen &^= bit(sub.Start)
	}

	kingAfter = kingBefore || sub.Promotes
	if kingAfter {
		next.AllyKings |= bit(sub.End)
	} else {
		next.AllyMen |= bit(sub.End)
	}

	if sub.Captured != NoCapture {
		cb := bit(sub.Captured)
		next.OppMen &^= cb
		next.OppKings &^= cb
	}
	return
}

// MakeMove applies m to s and returns the resulting state. Capture
// removal is permanent and promotion is applied immediately.
// GameState is value-typed so there is no separate non-final/preview
// variant to mutate; callers
// that want a UI preview should use Preview instead, which does not
// mutate game state at all.
func (s GameState) MakeMove(m Move) (GameState, error) {
	if len(m.Subs) == 0 {
		return s, fmt.Errorf("checkers: empty move: %w", trainerr.InvalidMoveSet)
	}

	cur := s
	kingNow := s.At(m.Subs[0].Start) == AllyKing
	for i, sub := range m.Subs {
		if i > 0 && sub.Start != m.Subs[i-1].End {
			return s, fmt.Errorf("checkers: sub-move %d does not continue from previous endpoint: %w", i, trainerr.InconsistentState)
		}
		cur, kingNow = cur.applySub(sub, kingNow)
	}
	return cur, nil
}

// Preview renders a board-shaped overlay for UI articulation of m
// without mutating game state: captured squares are flagged
// CapturedMarker and the move's start square is flagged TraceMarker,
// without committing the move.
func (s GameState) Preview(m Move) [NumSquares + 1]Piece {
	var out [NumSquares + 1]Piece
	for sq := 1; sq <= NumSquares; sq++ {
		out[sq] = s.At(sq)
	}
	if len(m.Subs) == 0 {
		return out
	}
	out[m.Start()] = TraceMarker
	for _, sq := range m.CapturedSquares() {
		out[sq] = CapturedMarker
	}
	return out
}
