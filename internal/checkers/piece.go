package checkers

// Piece enumerates what can occupy a square, including the two
// transient annotations used for preview articulation.
type Piece int

const (
	Empty Piece = iota
	AllyMan
	AllyKing
	OppMan
	OppKing
	CapturedMarker
	TraceMarker
)

func (p Piece) String() string {
	switch p {
	case Empty:
		return "."
	case AllyMan:
		return "a"
	case AllyKing:
		return "A"
	case OppMan:
		return "o"
	case OppKing:
		return "O"
	case CapturedMarker:
		return "x"
	case TraceMarker:
		return "*"
	default:
		return "?"
	}
}

// bit returns the bitmask for square sq (1-based) within an occupancy plane.
func bit(sq int) uint32 {
	return 1 << uint(sq-1)
}

// GameState is the value-typed board position. It owns no pointers and
// is cheap to copy; a Board holds one per episode and replaces it
// wholesale on every move rather than mutating pointer-owned,
// lazily-initialized state in place.
type GameState struct {
	AllyMen, AllyKings, OppMen, OppKings uint32
	Inverted                             bool
}

// NewStart returns the canonical starting position: three ranks of men
// on each side, ally to move.
func NewStart() GameState {
	var s GameState
	for sq := 1; sq <= 12; sq++ {
		s.AllyMen |= bit(sq)
	}
	for sq := 21; sq <= 32; sq++ {
		s.OppMen |= bit(sq)
	}
	return s
}

// At reports what occupies square sq.
func (s GameState) At(sq int) Piece {
	b := bit(sq)
	switch {
	case s.AllyMen&b != 0:
		return AllyMan
	case s.AllyKings&b != 0:
		return AllyKing
	case s.OppMen&b != 0:
		return OppMan
	case s.OppKings&b != 0:
		return OppKing
	default:
		return Empty
	}
}

// occupied is the union of all four planes.
func (s GameState) occupied() uint32 {
	return s.AllyMen | s.AllyKings | s.OppMen | s.OppKings
}

func (s GameState) allyOccupied() uint32 { return s.AllyMen | s.AllyKings }
func (s GameState) oppOccupied() uint32  { return s.OppMen | s.OppKings }

func (s GameState) isEmpty(sq int) bool    { return s.occupied()&bit(sq) == 0 }
func (s GameState) isOpponent(sq int) bool { return s.oppOccupied()&bit(sq) != 0 }
func (s GameState) isAlly(sq int) bool     { return s.allyOccupied()&bit(sq) != 0 }

// Invert reflects the board 180 degrees and swaps ally/opponent
// colors, toggling Inverted. Reflection maps square sq to its
// point-symmetric counterpart: row -> 7-row, col -> 7-col, which is
// equivalent to renumbering square sq as (NumSquares+1-sq).
//
// Invariant: Invert(Invert(s)) == s.
func (s GameState) Invert() GameState {
	return GameState{
		AllyMen:   reflect(s.OppMen),
		AllyKings: reflect(s.OppKings),
		OppMen:    reflect(s.AllyMen),
		OppKings:  reflect(s.AllyKings),
		Inverted:  !s.Inverted,
	}
}

// reflect maps every set bit at square sq to square (NumSquares+1-sq).
func reflect(plane uint32) uint32 {
	var out uint32
	for sq := 1; sq <= NumSquares; sq++ {
		if plane&bit(sq) != 0 {
			out |= bit(NumSquares + 1 - sq)
		}
	}
	return out
}

// Equal reports whether two states describe the same position,
// including perspective.
func (s GameState) Equal(o GameState) bool {
	return s.AllyMen == o.AllyMen && s.AllyKings == o.AllyKings &&
		s.OppMen == o.OppMen && s.OppKings == o.OppKings && s.Inverted == o.Inverted
}
