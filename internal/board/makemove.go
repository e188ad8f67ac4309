package board

import "fmt"

var pieceValues = [pieceSlots]int{NoPiece: 0, Pawn: 1, Knight: 3, Bishop: 5, Rook: 5, King: 3}

// PieceValue is the material value of a piece type.
func PieceValue(t PieceType) int { return pieceValues[t] }

// captureValue is the points a capture of pc awards. Pieces of eliminated
// players are worth nothing except their king.
func (p *Position) captureValue(pc Piece) int {
	if !p.active[pc.Player] {
		if pc.Type == King {
			return pieceValues[King]
		}
		return 0
	}
	return pieceValues[pc.Type]
}

// ApplyMove plays m for the side to move and returns the captured piece, if
// any. Moves are not checked for legality beyond requiring a piece on From.
func (p *Position) ApplyMove(m Move) (Piece, error) {
	if !m.From.Valid() || !m.To.Valid() {
		return Piece{Player: NoPlayer}, fmt.Errorf("board: move %s off board", m)
	}
	mover := p.PieceAt(m.From)
	if mover.IsNone() {
		return mover, fmt.Errorf("%w: %s", ErrEmptySquare, m)
	}
	captured := p.PieceAt(m.To)

	u := undoRecord{
		move:       m,
		moved:      mover,
		captured:   captured,
		mover:      p.side,
		prevHash:   p.hash,
		moveNumber: p.moveNumber,
		lastReset:  p.lastReset,
		eliminated: NoPlayer,
	}

	p.hash ^= PieceKey(mover.Type, mover.Player, m.From)
	p.remove(mover.Player, mover.Type, m.From)

	if !captured.IsNone() {
		p.hash ^= PieceKey(captured.Type, captured.Player, m.To)
		p.remove(captured.Player, captured.Type, m.To)
		u.points = p.captureValue(captured)
		p.scores[mover.Player] += u.points
		if captured.Type == King && p.active[captured.Player] {
			p.eliminate(captured.Player)
			u.eliminated = captured.Player
		}
	}

	placed := mover.Type
	if m.Promotion != NoPiece {
		placed = m.Promotion
	}
	p.put(mover.Player, placed, m.To)
	p.hash ^= PieceKey(placed, mover.Player, m.To)

	if p.side == p.lastActive() {
		p.moveNumber++
	}
	if !captured.IsNone() || mover.Type == Pawn {
		p.lastReset = p.moveNumber
		u.savedHistory = p.history
		p.history = make([]uint64, 0, 16)
	}

	p.undo = append(p.undo, u)
	p.advanceTurn()
	p.history = append(p.history, p.hash)
	p.termination = NotTerminated
	p.IsTerminal()
	return captured, nil
}

func (p *Position) eliminate(pl Player) {
	if !p.active[pl] {
		return
	}
	p.hash ^= ActiveKey(pl)
	p.active[pl] = false
	p.numActive--
}

// advanceTurn passes the move to the next active player. The old side's turn
// key is always removed; the new side's key is added only if it is active,
// which is not the case when a single player remains.
func (p *Position) advanceTurn() {
	old := p.side
	next := old.Next()
	for !p.active[next] && p.numActive > 1 {
		next = next.Next()
	}
	p.side = next
	if p.numActive > 0 {
		p.hash ^= TurnKey(old)
		if p.active[next] {
			p.hash ^= TurnKey(next)
		}
	}
}

// UndoLastMove reverses the most recent ApplyMove or Resign exactly.
func (p *Position) UndoLastMove() error {
	n := len(p.undo)
	if n == 0 {
		return ErrNoUndo
	}
	u := p.undo[n-1]
	p.undo = p.undo[:n-1]

	if !u.resigned {
		placed := u.moved.Type
		if u.move.Promotion != NoPiece {
			placed = u.move.Promotion
		}
		p.remove(u.moved.Player, placed, u.move.To)
		p.put(u.moved.Player, u.moved.Type, u.move.From)
		if !u.captured.IsNone() {
			p.put(u.captured.Player, u.captured.Type, u.move.To)
			p.scores[u.moved.Player] -= u.points
		}
		if u.savedHistory != nil {
			p.history = u.savedHistory
		} else if len(p.history) > 0 {
			p.history = p.history[:len(p.history)-1]
		}
	}
	if u.eliminated != NoPlayer {
		p.active[u.eliminated] = true
		p.numActive++
	}

	p.hash = u.prevHash
	p.side = u.mover
	p.moveNumber = u.moveNumber
	p.lastReset = u.lastReset
	p.termination = NotTerminated
	return nil
}

// Resign eliminates pl, who must be the side to move. The game continues
// with the next active player unless only one remains.
func (p *Position) Resign(pl Player) error {
	if pl < 0 || pl >= NumPlayers || !p.active[pl] {
		return fmt.Errorf("%w: %s", ErrInactivePlayer, pl)
	}
	if pl != p.side {
		return fmt.Errorf("board: %s cannot resign on %s's turn", pl, p.side)
	}
	u := undoRecord{
		mover:      pl,
		prevHash:   p.hash,
		moveNumber: p.moveNumber,
		lastReset:  p.lastReset,
		eliminated: pl,
		resigned:   true,
		captured:   Piece{Player: NoPlayer},
	}
	p.eliminate(pl)
	if p.numActive > 1 {
		p.advanceTurn()
	} else {
		p.hash ^= TurnKey(pl)
		p.termination = NotTerminated
	}
	p.undo = append(p.undo, u)
	p.IsTerminal()
	return nil
}
