package board

import "fmt"

// Player identifies one of the four seats. Turn order follows the numeric value.
type Player int8

const (
	Red Player = iota
	Blue
	Yellow
	Green

	NumPlayers = 4

	// NoPlayer marks the absence of a player (e.g. no elimination in an undo record).
	NoPlayer Player = -1
)

var playerNames = [NumPlayers]string{"red", "blue", "yellow", "green"}

func (p Player) String() string {
	if p < 0 || p >= NumPlayers {
		return "none"
	}
	return playerNames[p]
}

// Next returns the following seat in turn order, ignoring elimination.
func (p Player) Next() Player {
	return (p + 1) % NumPlayers
}

// PieceType is a kind of piece. NoPiece is the zero value so that a Move
// without promotion can be written as a plain struct literal.
type PieceType int8

const (
	NoPiece PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	King

	// NumPieceTypes counts the real piece kinds (Pawn..King).
	NumPieceTypes = 5

	pieceSlots = NumPieceTypes + 1
)

var pieceLetters = [pieceSlots]byte{'?', 'P', 'N', 'B', 'R', 'K'}

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Letter returns the upper-case piece letter used in SAN output.
func (t PieceType) Letter() byte {
	if t < 0 || t >= pieceSlots {
		return '?'
	}
	return pieceLetters[t]
}

// Piece is a typed piece owned by a player. The zero value has Type NoPiece.
type Piece struct {
	Player Player
	Type   PieceType
}

// IsNone reports whether p represents an empty square.
func (p Piece) IsNone() bool { return p.Type == NoPiece }

func (p Piece) String() string {
	if p.IsNone() {
		return "empty"
	}
	return p.Player.String() + " " + p.Type.String()
}

// Square indexes the board as row*8+col with row 0 at the top edge.
type Square int8

const (
	BoardSize  = 8
	NumSquares = 64

	NoSquare Square = -1
)

// SquareAt returns the square at (row, col). Coordinates are not validated.
func SquareAt(row, col int) Square {
	return Square(row*BoardSize + col)
}

func (s Square) Row() int { return int(s) / BoardSize }
func (s Square) Col() int { return int(s) % BoardSize }

// Valid reports whether s lies on the board.
func (s Square) Valid() bool { return s >= 0 && s < NumSquares }

// String returns algebraic notation: file 'a'+col, rank 8-row.
func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.Col()), byte('0' + BoardSize - s.Row())})
}

// ParseSquare parses algebraic notation produced by Square.String.
func ParseSquare(text string) (Square, error) {
	if len(text) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", text)
	}
	col := int(text[0] - 'a')
	rank := int(text[1] - '0')
	if col < 0 || col >= BoardSize || rank < 1 || rank > BoardSize {
		return NoSquare, fmt.Errorf("invalid square %q", text)
	}
	return SquareAt(BoardSize-rank, col), nil
}

func onBoard(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// Termination is the cached reason a game ended.
type Termination uint8

const (
	NotTerminated Termination = iota
	Elimination
	NoProgress
	Repetition
)

func (t Termination) String() string {
	switch t {
	case Elimination:
		return "elimination"
	case NoProgress:
		return "fifty_move_rule"
	case Repetition:
		return "threefold_repetition"
	default:
		return ""
	}
}
