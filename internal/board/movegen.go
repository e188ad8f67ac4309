package board

// LegalMoveCandidates returns the pseudo-legal moves of pl. There is no check
// rule in this variant, so every candidate is playable. An inactive player
// has no moves.
func (p *Position) LegalMoveCandidates(pl Player) []Move {
	if pl < 0 || pl >= NumPlayers || !p.active[pl] {
		return nil
	}
	moves := make([]Move, 0, 32)
	own := p.byPlayer[pl]
	targets := ^own

	pawns := p.pieces[pl][Pawn]
	for pawns != 0 {
		from := pawns.PopLSB()
		dests := pawnPushes[pl][from] &^ p.occupied
		dests |= pawnCaptures[pl][from] & p.occupied &^ own
		for dests != 0 {
			to := dests.PopLSB()
			m := Move{From: from, To: to}
			if promotionSq[pl].Has(to) {
				m.Promotion = Rook
			}
			moves = append(moves, m)
		}
	}

	moves = appendJumps(moves, p.pieces[pl][Knight], &knightAttacks, targets)
	moves = appendJumps(moves, p.pieces[pl][King], &kingAttacks, targets)

	bishops := p.pieces[pl][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		moves = appendTargets(moves, from, BishopAttacks(from, p.occupied)&targets)
	}
	rooks := p.pieces[pl][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		moves = appendTargets(moves, from, RookAttacks(from, p.occupied)&targets)
	}
	return moves
}

// SideMoves returns the candidates for the side to move.
func (p *Position) SideMoves() []Move { return p.LegalMoveCandidates(p.side) }

func appendJumps(moves []Move, pieces Bitboard, table *[NumSquares]Bitboard, targets Bitboard) []Move {
	for pieces != 0 {
		from := pieces.PopLSB()
		moves = appendTargets(moves, from, table[from]&targets)
	}
	return moves
}

func appendTargets(moves []Move, from Square, dests Bitboard) []Move {
	for dests != 0 {
		moves = append(moves, Move{From: from, To: dests.PopLSB()})
	}
	return moves
}

// AttacksBy returns every square attacked by pl's pieces. Pawns contribute
// their diagonal capture squares only.
func (p *Position) AttacksBy(pl Player) Bitboard {
	var att Bitboard
	bb := p.pieces[pl][Pawn]
	for bb != 0 {
		att |= pawnCaptures[pl][bb.PopLSB()]
	}
	bb = p.pieces[pl][Knight]
	for bb != 0 {
		att |= knightAttacks[bb.PopLSB()]
	}
	bb = p.pieces[pl][King]
	for bb != 0 {
		att |= kingAttacks[bb.PopLSB()]
	}
	bb = p.pieces[pl][Bishop]
	for bb != 0 {
		att |= BishopAttacks(bb.PopLSB(), p.occupied)
	}
	bb = p.pieces[pl][Rook]
	for bb != 0 {
		att |= RookAttacks(bb.PopLSB(), p.occupied)
	}
	return att
}

// IsLegal reports whether m is among the side to move's candidates.
func (p *Position) IsLegal(m Move) bool {
	for _, c := range p.SideMoves() {
		if c == m {
			return true
		}
	}
	return false
}
