package board

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySquare    = errors.New("board: no piece on from square")
	ErrNoUndo         = errors.New("board: undo log is empty")
	ErrInactivePlayer = errors.New("board: player is not active")
	ErrOccupied       = errors.New("board: square already occupied")
)

// undoRecord is one reversible delta pushed by ApplyMove or Resign.
type undoRecord struct {
	move       Move
	moved      Piece
	captured   Piece
	points     int
	mover      Player
	prevHash   uint64
	moveNumber int
	lastReset  int
	eliminated Player
	resigned   bool
	// savedHistory holds the history dropped by a resetting move.
	savedHistory []uint64
}

// Position is the full state of one game instant. The zero value is not
// usable; build one with NewPosition or NewEmptyPosition.
type Position struct {
	pieces   [NumPlayers][pieceSlots]Bitboard
	byPlayer [NumPlayers]Bitboard
	occupied Bitboard

	active    [NumPlayers]bool
	numActive int
	scores    [NumPlayers]int

	side       Player
	moveNumber int
	lastReset  int

	hash    uint64
	history []uint64
	undo    []undoRecord

	termination Termination
}

var backRank = [4]PieceType{Rook, Knight, Bishop, King}

// NewPosition returns the standard starting position with Red to move.
// It panics if Init has not been called.
func NewPosition() *Position {
	p := newBlank(Red)
	for i, t := range backRank {
		p.put(Red, t, SquareAt(7, i))
		p.put(Red, Pawn, SquareAt(6, i))

		p.put(Blue, t, SquareAt(i, 0))
		p.put(Blue, Pawn, SquareAt(i, 1))

		p.put(Yellow, t, SquareAt(0, 7-i))
		p.put(Yellow, Pawn, SquareAt(1, 7-i))

		p.put(Green, t, SquareAt(7-i, 7))
		p.put(Green, Pawn, SquareAt(7-i, 6))
	}
	p.resetHash()
	return p
}

// NewEmptyPosition returns a board with all four players active, no pieces
// and side to move. Pieces are added with Place.
func NewEmptyPosition(side Player) *Position {
	p := newBlank(side)
	p.resetHash()
	return p
}

func newBlank(side Player) *Position {
	mustBeInitialized()
	p := &Position{
		side:       side,
		moveNumber: 1,
		lastReset:  1,
		numActive:  NumPlayers,
	}
	for i := range p.active {
		p.active[i] = true
	}
	return p
}

// Place puts a piece on an empty square of a position that has no moves
// played yet. The hash and repetition history are recomputed.
func (p *Position) Place(pl Player, t PieceType, sq Square) error {
	if len(p.undo) > 0 {
		return errors.New("board: place after moves were applied")
	}
	if !sq.Valid() || t == NoPiece || pl < 0 || pl >= NumPlayers {
		return fmt.Errorf("board: invalid placement %s %s on %s", pl, t, sq)
	}
	if p.occupied.Has(sq) {
		return fmt.Errorf("%w: %s", ErrOccupied, sq)
	}
	p.put(pl, t, sq)
	p.resetHash()
	return nil
}

// SetActive marks a player active or eliminated on a position that has no
// moves played yet.
func (p *Position) SetActive(pl Player, active bool) error {
	if len(p.undo) > 0 {
		return errors.New("board: set active after moves were applied")
	}
	if pl < 0 || pl >= NumPlayers {
		return fmt.Errorf("board: invalid player %d", pl)
	}
	if p.active[pl] != active {
		p.active[pl] = active
		if active {
			p.numActive++
		} else {
			p.numActive--
		}
	}
	p.resetHash()
	return nil
}

func (p *Position) put(pl Player, t PieceType, sq Square) {
	b := Bit(sq)
	p.pieces[pl][t] |= b
	p.byPlayer[pl] |= b
	p.occupied |= b
}

func (p *Position) remove(pl Player, t PieceType, sq Square) {
	b := ^Bit(sq)
	p.pieces[pl][t] &= b
	p.byPlayer[pl] &= b
	p.occupied &= b
}

// computeHash derives the Zobrist key from scratch.
func (p *Position) computeHash() uint64 {
	var h uint64
	for pl := Player(0); pl < NumPlayers; pl++ {
		for t := Pawn; t <= King; t++ {
			bb := p.pieces[pl][t]
			for bb != 0 {
				h ^= PieceKey(t, pl, bb.PopLSB())
			}
		}
		if p.active[pl] {
			h ^= ActiveKey(pl)
		}
	}
	if p.active[p.side] {
		h ^= TurnKey(p.side)
	}
	return h
}

func (p *Position) resetHash() {
	p.hash = p.computeHash()
	p.history = []uint64{p.hash}
	p.termination = NotTerminated
}

// Clone returns a deep copy, including history and the undo log.
func (p *Position) Clone() *Position {
	c := *p
	c.history = append([]uint64(nil), p.history...)
	c.undo = make([]undoRecord, len(p.undo))
	for i, u := range p.undo {
		c.undo[i] = u
		if u.savedHistory != nil {
			c.undo[i].savedHistory = append([]uint64(nil), u.savedHistory...)
		}
	}
	return &c
}

// Child returns a copy of p with m applied. The copy keeps the repetition
// history but starts with an empty undo log.
func (p *Position) Child(m Move) (*Position, error) {
	c := *p
	c.history = make([]uint64, len(p.history), len(p.history)+1)
	copy(c.history, p.history)
	c.undo = nil
	if _, err := c.ApplyMove(m); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the bitboard invariants: per-player masks are disjoint,
// occupied is their union, and the incremental hash matches a recomputation.
func (p *Position) Validate() error {
	var union Bitboard
	for pl := Player(0); pl < NumPlayers; pl++ {
		var own Bitboard
		for t := Pawn; t <= King; t++ {
			if own&p.pieces[pl][t] != 0 {
				return fmt.Errorf("board: %s piece masks overlap", pl)
			}
			own |= p.pieces[pl][t]
		}
		if own != p.byPlayer[pl] {
			return fmt.Errorf("board: %s occupancy out of sync", pl)
		}
		if union&own != 0 {
			return fmt.Errorf("board: %s overlaps another player", pl)
		}
		union |= own
	}
	if union != p.occupied {
		return errors.New("board: occupied is not the union of player masks")
	}
	if h := p.computeHash(); h != p.hash {
		return fmt.Errorf("board: hash %016x, recomputed %016x", p.hash, h)
	}
	return nil
}

// PieceAt returns the piece on sq, or the zero Piece when empty.
func (p *Position) PieceAt(sq Square) Piece {
	b := Bit(sq)
	if p.occupied&b == 0 {
		return Piece{Player: NoPlayer}
	}
	for pl := Player(0); pl < NumPlayers; pl++ {
		if p.byPlayer[pl]&b == 0 {
			continue
		}
		for t := Pawn; t <= King; t++ {
			if p.pieces[pl][t]&b != 0 {
				return Piece{Player: pl, Type: t}
			}
		}
	}
	return Piece{Player: NoPlayer}
}

func (p *Position) Pieces(pl Player, t PieceType) Bitboard { return p.pieces[pl][t] }
func (p *Position) PlayerPieces(pl Player) Bitboard      { return p.byPlayer[pl] }
func (p *Position) Occupied() Bitboard                   { return p.occupied }
func (p *Position) SideToMove() Player                   { return p.side }
func (p *Position) IsActive(pl Player) bool              { return p.active[pl] }
func (p *Position) NumActive() int                       { return p.numActive }
func (p *Position) Score(pl Player) int                  { return p.scores[pl] }
func (p *Position) Scores() [NumPlayers]int              { return p.scores }
func (p *Position) MoveNumber() int                      { return p.moveNumber }
func (p *Position) LastResetMove() int                   { return p.lastReset }
func (p *Position) Hash() uint64                         { return p.hash }
func (p *Position) UndoDepth() int                       { return len(p.undo) }

// History returns a copy of the repetition history since the last reset.
func (p *Position) History() []uint64 { return append([]uint64(nil), p.history...) }

// ActivePlayers lists the active players in turn order.
func (p *Position) ActivePlayers() []Player {
	out := make([]Player, 0, p.numActive)
	for pl := Player(0); pl < NumPlayers; pl++ {
		if p.active[pl] {
			out = append(out, pl)
		}
	}
	return out
}

// lastActive returns the highest-index active player.
func (p *Position) lastActive() Player {
	for pl := Player(NumPlayers - 1); pl >= 0; pl-- {
		if p.active[pl] {
			return pl
		}
	}
	return NoPlayer
}
