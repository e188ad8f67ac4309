package board

// Heuristic weights for Evaluate.
const (
	undevelopedPenalty = 0.4
	shelterPawn        = 0.2
	shelterPiece       = 0.05
	deadNeighbour      = 0.15
	enemyNeighbour     = 0.15
	pawnAdvance        = 0.2
	pawnBlocked        = 0.2
	pawnOutpost        = 0.2
	pawnThreat         = 0.2
	pawnKingThreat     = 0.1
	kingHarassed       = 0.5
	missingKing        = -999
	evalBaseline       = 20
)

// homeEdge reports whether sq is on pl's back edge.
func homeEdge(pl Player, sq Square) bool {
	switch pl {
	case Red:
		return sq.Row() == BoardSize-1
	case Blue:
		return sq.Col() == 0
	case Yellow:
		return sq.Row() == 0
	default:
		return sq.Col() == BoardSize-1
	}
}

// pawnProgress is how many steps a pawn of pl on sq has advanced from its
// starting line.
func pawnProgress(pl Player, sq Square) int {
	switch pl {
	case Red:
		return 6 - sq.Row()
	case Blue:
		return sq.Col() - 1
	case Yellow:
		return sq.Row() - 1
	default:
		return 6 - sq.Col()
	}
}

// Evaluate returns a static per-player estimate: material and placement of
// active players' pieces plus capture points, shifted down by a constant.
// An active player without a king scores -999 before points are added.
func (p *Position) Evaluate() [NumPlayers]float64 {
	var scores [NumPlayers]float64
	for pl := Player(0); pl < NumPlayers; pl++ {
		if !p.active[pl] {
			continue
		}
		for t := Pawn; t <= King; t++ {
			bb := p.pieces[pl][t]
			for bb != 0 {
				sq := bb.PopLSB()
				scores[pl] += float64(pieceValues[t])
				switch t {
				case Knight, Bishop:
					if homeEdge(pl, sq) {
						scores[pl] -= undevelopedPenalty
					}
				case King:
					scores[pl] += p.kingShelter(pl, sq)
				case Pawn:
					p.scorePawn(&scores, pl, sq)
				}
			}
		}
	}
	for pl := Player(0); pl < NumPlayers; pl++ {
		if p.active[pl] && p.pieces[pl][King] == 0 {
			scores[pl] = missingKing
		}
		scores[pl] += float64(p.scores[pl]) - evalBaseline
	}
	return scores
}

func (p *Position) kingShelter(pl Player, sq Square) float64 {
	s := 0.0
	near := kingAttacks[sq] & p.occupied
	for near != 0 {
		n := p.PieceAt(near.PopLSB())
		switch {
		case n.Player == pl && n.Type == Pawn:
			s += shelterPawn
		case n.Player == pl:
			s += shelterPiece
		case !p.active[n.Player]:
			s += deadNeighbour
		default:
			s -= enemyNeighbour
		}
	}
	return s
}

func (p *Position) scorePawn(scores *[NumPlayers]float64, pl Player, sq Square) {
	scores[pl] += pawnAdvance * float64(pawnProgress(pl, sq))
	if pawnPushes[pl][sq]&p.occupied != 0 {
		scores[pl] -= pawnBlocked
	}
	diag := pawnCaptures[pl][sq] & p.occupied
	for diag != 0 {
		t := p.PieceAt(diag.PopLSB())
		if t.Player == pl {
			if t.Type == Bishop || t.Type == Knight {
				scores[pl] += pawnOutpost
			}
			continue
		}
		scores[pl] += pawnThreat
		if t.Type == King && p.active[t.Player] {
			scores[pl] += pawnKingThreat
			scores[t.Player] -= kingHarassed
		}
	}
}
