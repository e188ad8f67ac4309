package board

import (
	"errors"
	"math/bits"
)

// Slider selects the sliding piece a magic table serves.
type Slider uint8

const (
	RookSlider Slider = iota
	BishopSlider
)

func (s Slider) String() string {
	if s == BishopSlider {
		return "bishop"
	}
	return "rook"
}

var (
	rookDirs   = [4][2]int{{-1, 0}, {1, 0}, {0, 1}, {0, -1}}
	bishopDirs = [4][2]int{{-1, 1}, {1, 1}, {1, -1}, {-1, -1}}
)

func (s Slider) dirs() [4][2]int {
	if s == BishopSlider {
		return bishopDirs
	}
	return rookDirs
}

// Magic constants found offline by cmd/magicfind. Shift is 64 minus the
// number of relevant mask bits for the square.
var rookMagicNumbers = [NumSquares]uint64{
	0x2280005882604000, 0x214000c010006002, 0x0100082000401100, 0x9100082100041001,
	0x0280040028008012, 0xa880018002000400, 0x4580008009000200, 0x3080008000502100,
	0x4180802040008000, 0x4400400020005001, 0x4280802000801000, 0x4f00808008001000,
	0x0381806400480080, 0x0004804400800200, 0x0004004170020408, 0x0001000a00815500,
	0x0000248000400099, 0x8040008020008040, 0x5021010020004812, 0x0888008010000880,
	0x4018010008041100, 0x2422008002800400, 0x40c00c0091082a10, 0x0202020020840041,
	0x0248800280244000, 0x0000208200410208, 0x020d014100102000, 0x0381002100081000,
	0x8201040180080080, 0x0242001200103844, 0x2204100400024148, 0x0000012200004084,
	0x0480204000800080, 0x0000802002804005, 0x0000200080801008, 0x0030080080801004,
	0x2004000800800480, 0x5000040080800200, 0x00810004c1000200, 0x0200800040800100,
	0x1540614000928000, 0x0c08200050084000, 0x0610002408002000, 0x9410c22201120008,
	0x0003000800050012, 0x6000020004008080, 0x4010420108040010, 0x1000410080420004,
	0x80008010a3400280, 0x0401004000208100, 0x0020001003802280, 0x4018100100082100,
	0x4004008006080080, 0x4042000204008080, 0x0001000442002100, 0x0104800100005880,
	0x004200810020104a, 0x0040804000142105, 0x0280200008110041, 0x8010010008200411,
	0x4012000c60100932, 0x10ca004804104102, 0x1820081002012084, 0x0680002400410082,
}

var bishopMagicNumbers = [NumSquares]uint64{
	0x0410022084008204, 0x8004010812008404, 0x02441400a2000009, 0x1808204044001108,
	0x8110882020018000, 0x0c20880540000000, 0x0011009004208080, 0x2003008090011000,
	0x0300620210010502, 0x0000200401104518, 0x2000484800608000, 0x4002040410880005,
	0x0a1002121010000e, 0x0100371006100020, 0x2000020801480800, 0x0344008404220204,
	0x4084401010420800, 0x001054e401025401, 0x183400aa10220201, 0x200c018804121400,
	0x0284800400a04100, 0x0042006901008280, 0x0004000084218800, 0x8088400212020100,
	0x0088090205a00830, 0x1001090420480104, 0x20010100408c0100, 0x0c04004144010102,
	0x2002840000812000, 0x020092001308022b, 0x0088011002008202, 0x1000808001040082,
	0x30042020000b0208, 0x200108080a821000, 0x1014104407080810, 0x2009200800010104,
	0x0044080201002008, 0x0050210a00004040, 0x2084011048060840, 0xae08010058002204,
	0x8045243004004102, 0x02c409043000c220, 0x48c0211058041000, 0x0207046091004800,
	0x8100310a02005420, 0x4001050307000200, 0x00a8081140440400, 0x000200aa12000480,
	0x0044008884700400, 0x0c02220110184023, 0x0000194406210040, 0x4000c8828404420c,
	0x40c1120610440000, 0x0400102230044014, 0x0840100200a10400, 0x0004081208420500,
	0x0402410090012104, 0x0801002201100810, 0x0000000842009000, 0x0051400044208810,
	0x0004000020024416, 0x000c084011140522, 0x8400200202c80900, 0x00083801004a0204,
}

// magicEntry maps a blocker configuration to a precomputed attack set:
// attacks[((occ & mask) * magic) >> shift].
type magicEntry struct {
	mask    Bitboard
	magic   uint64
	shift   uint8
	attacks []Bitboard
}

func (m *magicEntry) index(occupied Bitboard) uint64 {
	return (uint64(occupied&m.mask) * m.magic) >> m.shift
}

var (
	rookTable   [NumSquares]magicEntry
	bishopTable [NumSquares]magicEntry
)

// RelevantMask returns the squares whose occupancy can change the slider's
// attack set from sq. Edge squares at the end of each ray are excluded.
func RelevantMask(sq Square, s Slider) Bitboard {
	var mask Bitboard
	r0, c0 := sq.Row(), sq.Col()
	for _, d := range s.dirs() {
		r, c := r0+d[0], c0+d[1]
		for onBoard(r+d[0], c+d[1]) {
			mask |= Bit(SquareAt(r, c))
			r += d[0]
			c += d[1]
		}
	}
	return mask
}

// SlowAttacks computes the slider's attack set from sq by walking each ray
// until it leaves the board or hits an occupied square (inclusive).
func SlowAttacks(sq Square, s Slider, occupied Bitboard) Bitboard {
	var attacks Bitboard
	r0, c0 := sq.Row(), sq.Col()
	for _, d := range s.dirs() {
		for r, c := r0+d[0], c0+d[1]; onBoard(r, c); r, c = r+d[0], c+d[1] {
			t := SquareAt(r, c)
			attacks |= Bit(t)
			if occupied.Has(t) {
				break
			}
		}
	}
	return attacks
}

// OccupancySubset returns the index-th subset of mask, where bit i of index
// selects the i-th lowest set square of mask.
func OccupancySubset(index int, mask Bitboard) Bitboard {
	var occ Bitboard
	for i := 0; mask != 0; i++ {
		sq := mask.PopLSB()
		if index&(1<<i) != 0 {
			occ |= Bit(sq)
		}
	}
	return occ
}

// errMagicCollision is returned when two blocker sets with different attack
// sets hash to the same table slot.
var errMagicCollision = errors.New("magic collision")

func buildMagicEntry(sq Square, s Slider, magic uint64) (magicEntry, error) {
	mask := RelevantMask(sq, s)
	n := mask.Count()
	e := magicEntry{
		mask:    mask,
		magic:   magic,
		shift:   uint8(64 - n),
		attacks: make([]Bitboard, 1<<n),
	}
	used := make([]bool, 1<<n)
	for i := 0; i < 1<<n; i++ {
		occ := OccupancySubset(i, mask)
		att := SlowAttacks(sq, s, occ)
		idx := e.index(occ)
		if used[idx] && e.attacks[idx] != att {
			return magicEntry{}, errMagicCollision
		}
		used[idx] = true
		e.attacks[idx] = att
	}
	return e, nil
}

// MagicSource supplies 64-bit candidates to FindMagic.
type MagicSource interface {
	Uint64() uint64
}

const maxMagicTries = 1_000_000

// FindMagic searches for a collision-free magic multiplier for the slider on
// sq. Candidates are sparse (three ANDed random words) and must spread the
// mask into the top byte.
func FindMagic(sq Square, s Slider, src MagicSource) (uint64, error) {
	mask := RelevantMask(sq, s)
	for try := 0; try < maxMagicTries; try++ {
		magic := src.Uint64() & src.Uint64() & src.Uint64()
		if bits.OnesCount64((uint64(mask)*magic)&0xFF00000000000000) < 6 {
			continue
		}
		if _, err := buildMagicEntry(sq, s, magic); err == nil {
			return magic, nil
		}
	}
	return 0, errors.New("no magic found for " + s.String() + " on " + sq.String())
}

func initMagicTables(src MagicSource) {
	for sq := Square(0); sq < NumSquares; sq++ {
		rookTable[sq] = mustMagicEntry(sq, RookSlider, rookMagicNumbers[sq], src)
		bishopTable[sq] = mustMagicEntry(sq, BishopSlider, bishopMagicNumbers[sq], src)
	}
}

// mustMagicEntry builds the table for a pinned constant, replacing it with a
// freshly searched one if it collides.
func mustMagicEntry(sq Square, s Slider, magic uint64, src MagicSource) magicEntry {
	e, err := buildMagicEntry(sq, s, magic)
	if err == nil {
		return e
	}
	magic, err = FindMagic(sq, s, src)
	if err != nil {
		panic("board: " + err.Error())
	}
	e, err = buildMagicEntry(sq, s, magic)
	if err != nil {
		panic("board: " + err.Error())
	}
	return e
}

// RookAttacks returns rook attacks from sq given the board occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	e := &rookTable[sq]
	return e.attacks[e.index(occupied)]
}

// BishopAttacks returns bishop attacks from sq given the board occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	e := &bishopTable[sq]
	return e.attacks[e.index(occupied)]
}

// MagicFor returns the multiplier in use for the slider on sq.
func MagicFor(sq Square, s Slider) uint64 {
	if s == BishopSlider {
		return bishopTable[sq].magic
	}
	return rookTable[sq].magic
}
