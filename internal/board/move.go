package board

import (
	"fmt"
	"sort"
)

// PolicySize is the length of the policy vector: one slot per (from, to) pair.
const PolicySize = NumSquares * NumSquares

// Move is an immutable (from, to, promotion) triple. Promotion is NoPiece
// unless a pawn reaches its promotion edge, in which case it is Rook.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
}

// Less orders moves lexicographically on from, then to, then promotion.
func (m Move) Less(o Move) bool {
	if m.From != o.From {
		return m.From < o.From
	}
	if m.To != o.To {
		return m.To < o.To
	}
	return m.Promotion < o.Promotion
}

// SortMoves sorts ms in Less order.
func SortMoves(ms []Move) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Less(ms[j]) })
}

// PolicyIndex maps the move to from*64+to, ignoring promotion.
func (m Move) PolicyIndex() int {
	return int(m.From)*NumSquares + int(m.To)
}

// MoveFromPolicyIndex inverts PolicyIndex. Promotion is never recovered.
func MoveFromPolicyIndex(index int) (Move, error) {
	if index < 0 || index >= PolicySize {
		return Move{}, fmt.Errorf("policy index %d out of range [0, %d)", index, PolicySize)
	}
	return Move{From: Square(index / NumSquares), To: Square(index % NumSquares)}, nil
}

// UCI renders the move as <from><to>[r], e.g. "a2a3" or "d2d1r".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion == Rook {
		s += "r"
	}
	return s
}

func (m Move) String() string { return m.UCI() }

// ParseUCI parses a move produced by Move.UCI.
func ParseUCI(text string) (Move, error) {
	if len(text) != 4 && len(text) != 5 {
		return Move{}, fmt.Errorf("invalid uci move %q", text)
	}
	from, err := ParseSquare(text[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("uci move %q: %w", text, err)
	}
	to, err := ParseSquare(text[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("uci move %q: %w", text, err)
	}
	m := Move{From: from, To: to}
	if len(text) == 5 {
		if text[4] != 'r' && text[4] != 'R' {
			return Move{}, fmt.Errorf("uci move %q: only rook promotion is allowed", text)
		}
		m.Promotion = Rook
	}
	return m, nil
}
