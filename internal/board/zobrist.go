package board

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/bszcz/mt19937_64"
)

// ZobristSeed seeds the Mersenne Twister that generates the hash keys, so
// position hashes are stable across processes and persisted datasets.
const ZobristSeed = 0xBADFACE

type zobristKeys struct {
	piece  [pieceSlots][NumPlayers][NumSquares]uint64
	turn   [NumPlayers]uint64
	active [NumPlayers]uint64
}

var (
	zobrist     zobristKeys
	initOnce    sync.Once
	initialized atomic.Bool
)

// NewMT returns a math/rand generator backed by a seeded 64-bit Mersenne Twister.
func NewMT(seed int64) *rand.Rand {
	mt := mt19937_64.New()
	mt.Seed(seed)
	return rand.New(mt)
}

func initZobrist(r *rand.Rand) {
	for t := Pawn; t <= King; t++ {
		for p := Player(0); p < NumPlayers; p++ {
			for sq := 0; sq < NumSquares; sq++ {
				zobrist.piece[t][p][sq] = r.Uint64()
			}
		}
	}
	for p := Player(0); p < NumPlayers; p++ {
		zobrist.turn[p] = r.Uint64()
	}
	for p := Player(0); p < NumPlayers; p++ {
		zobrist.active[p] = r.Uint64()
	}
}

// Init builds the jump tables, the magic sliding-attack tables and the
// Zobrist keys. It must run before any Position is created; repeated calls
// are no-ops.
func Init() {
	initOnce.Do(func() {
		r := NewMT(ZobristSeed)
		initJumpTables()
		initZobrist(r)
		initMagicTables(r)
		initialized.Store(true)
	})
}

// Initialized reports whether Init has completed.
func Initialized() bool { return initialized.Load() }

func mustBeInitialized() {
	if !initialized.Load() {
		panic("board: Init must be called before creating a Position")
	}
}

// PieceKey returns the Zobrist key for a piece of type t owned by p on sq.
func PieceKey(t PieceType, p Player, sq Square) uint64 { return zobrist.piece[t][p][sq] }

// TurnKey returns the side-to-move key for p.
func TurnKey(p Player) uint64 { return zobrist.turn[p] }

// ActiveKey returns the active-status key for p.
func ActiveKey(p Player) uint64 { return zobrist.active[p] }
