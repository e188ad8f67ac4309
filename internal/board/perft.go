package board

// Perft counts the move sequences of the given depth from p. Terminal
// positions are leaves. p is restored before returning.
func Perft(p *Position, depth int) (uint64, error) {
	if depth == 0 {
		return 1, nil
	}
	moves := p.SideMoves()
	if depth == 1 {
		return uint64(len(moves)), nil
	}
	var total uint64
	for _, m := range moves {
		if _, err := p.ApplyMove(m); err != nil {
			return 0, err
		}
		if p.IsTerminal() {
			total++
		} else {
			n, err := Perft(p, depth-1)
			if err != nil {
				return 0, err
			}
			total += n
		}
		if err := p.UndoLastMove(); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// DivideEntry is the perft count below one root move.
type DivideEntry struct {
	Move  Move
	Nodes uint64
}

// PerftDivide returns per-root-move perft counts in sorted move order.
func PerftDivide(p *Position, depth int) ([]DivideEntry, error) {
	if depth < 1 {
		return nil, nil
	}
	moves := p.SideMoves()
	SortMoves(moves)
	out := make([]DivideEntry, 0, len(moves))
	for _, m := range moves {
		if _, err := p.ApplyMove(m); err != nil {
			return nil, err
		}
		n := uint64(1)
		if !p.IsTerminal() {
			var err error
			if n, err = Perft(p, depth-1); err != nil {
				return nil, err
			}
		}
		if err := p.UndoLastMove(); err != nil {
			return nil, err
		}
		out = append(out, DivideEntry{Move: m, Nodes: n})
	}
	return out, nil
}
