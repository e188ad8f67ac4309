package board

var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

// pawnRule describes how one player's pawns travel.
type pawnRule struct {
	forward  [2]int
	captures [2][2]int
	// promoRow/promoCol: exactly one is >= 0.
	promoRow, promoCol int
}

var pawnRules = [NumPlayers]pawnRule{
	Red:    {forward: [2]int{-1, 0}, captures: [2][2]int{{-1, -1}, {-1, 1}}, promoRow: 0, promoCol: -1},
	Blue:   {forward: [2]int{0, 1}, captures: [2][2]int{{-1, 1}, {1, 1}}, promoRow: -1, promoCol: BoardSize - 1},
	Yellow: {forward: [2]int{1, 0}, captures: [2][2]int{{1, -1}, {1, 1}}, promoRow: BoardSize - 1, promoCol: -1},
	Green:  {forward: [2]int{0, -1}, captures: [2][2]int{{-1, -1}, {1, -1}}, promoRow: -1, promoCol: 0},
}

var (
	knightAttacks [NumSquares]Bitboard
	kingAttacks   [NumSquares]Bitboard
	// pawnPushes holds the single forward square (or 0 at the edge).
	pawnPushes   [NumPlayers][NumSquares]Bitboard
	pawnCaptures [NumPlayers][NumSquares]Bitboard
	promotionSq  [NumPlayers]Bitboard
)

func jumpTable(offsets [8][2]int) (table [NumSquares]Bitboard) {
	for sq := Square(0); sq < NumSquares; sq++ {
		for _, d := range offsets {
			r, c := sq.Row()+d[0], sq.Col()+d[1]
			if onBoard(r, c) {
				table[sq] |= Bit(SquareAt(r, c))
			}
		}
	}
	return table
}

func initJumpTables() {
	knightAttacks = jumpTable(knightOffsets)
	kingAttacks = jumpTable(kingOffsets)

	for p := Player(0); p < NumPlayers; p++ {
		rule := pawnRules[p]
		promotionSq[p] = 0
		for sq := Square(0); sq < NumSquares; sq++ {
			r, c := sq.Row(), sq.Col()
			if onBoard(r+rule.forward[0], c+rule.forward[1]) {
				pawnPushes[p][sq] = Bit(SquareAt(r+rule.forward[0], c+rule.forward[1]))
			}
			for _, d := range rule.captures {
				if onBoard(r+d[0], c+d[1]) {
					pawnCaptures[p][sq] |= Bit(SquareAt(r+d[0], c+d[1]))
				}
			}
			if r == rule.promoRow || c == rule.promoCol {
				promotionSq[p] |= Bit(sq)
			}
		}
	}
}

// KnightAttacks returns the knight jump targets from sq.
func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }

// KingAttacks returns the king step targets from sq.
func KingAttacks(sq Square) Bitboard { return kingAttacks[sq] }

// PawnCaptureSquares returns the diagonal squares a pawn of p attacks from sq.
func PawnCaptureSquares(p Player, sq Square) Bitboard { return pawnCaptures[p][sq] }

// IsPromotionSquare reports whether a pawn of p reaching sq promotes.
func IsPromotionSquare(p Player, sq Square) bool { return promotionSq[p].Has(sq) }
