package checkers

// NoCapture is the sentinel value for SubMove.Captured meaning "this
// sub-move captured nothing". Square numbers are 1-based so 0 is free.
const NoCapture = 0

// SubMove is one leg of a Move: a single step or jump of one piece
// from Start to End, optionally capturing the piece on square
// Captured, optionally promoting the piece to a king on arrival.
type SubMove struct {
	Start, End int
	Captured   int
	Promotes   bool
}

// Move is an ordered, non-empty sequence of sub-moves.
// A non-capture move always has exactly one sub-move; a capture move
// may chain across several.
type Move struct {
	Subs []SubMove
}

// IsCapture reports whether m's first sub-move captures a piece. By
// the chain invariant, if the first sub-move captures, every sub-move
// in m captures.
func (m Move) IsCapture() bool {
	return len(m.Subs) > 0 && m.Subs[0].Captured != NoCapture
}

// Start returns the square the moving piece started from.
func (m Move) Start() int { return m.Subs[0].Start }

// End returns the square the moving piece ends on.
func (m Move) End() int { return m.Subs[len(m.Subs)-1].End }

// CapturedSquares returns every square captured along the chain, in order.
func (m Move) CapturedSquares() []int {
	var out []int
	for _, sub := range m.Subs {
		if sub.Captured != NoCapture {
			out = append(out, sub.Captured)
		}
	}
	return out
}

// Promotes reports whether some sub-move of m promotes the moving man
// to a king. A king that merely moves reports false.
func (m Move) Promotes() bool {
	for _, sub := range m.Subs {
		if sub.Promotes {
			return true
		}
	}
	return false
}

// Equal reports whether two moves describe the identical sub-move sequence.
func (m Move) Equal(o Move) bool {
	if len(m.Subs) != len(o.Subs) {
		return false
	}
	for i := range m.Subs {
		if m.Subs[i] != o.Subs[i] {
			return false
		}
	}
	return true
}
