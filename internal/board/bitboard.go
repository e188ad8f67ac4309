package board

import "math/bits"

// Bitboard is a 64-bit set of squares; bit i is Square(i).
type Bitboard uint64

// Bit returns the single-square bitboard for s.
func Bit(s Square) Bitboard { return Bitboard(1) << uint(s) }

func (b Bitboard) Has(s Square) bool { return b&Bit(s) != 0 }

func (b Bitboard) Count() int { return bits.OnesCount64(uint64(b)) }

// LSB returns the lowest set square, or NoSquare when b is empty.
func (b Bitboard) LSB() Square {
	if b == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(uint64(b)))
}

// PopLSB clears and returns the lowest set square.
func (b *Bitboard) PopLSB() Square {
	s := b.LSB()
	if s != NoSquare {
		*b &= *b - 1
	}
	return s
}

// Squares lists the set squares in ascending order.
func (b Bitboard) Squares() []Square {
	out := make([]Square, 0, b.Count())
	for b != 0 {
		out = append(out, b.PopLSB())
	}
	return out
}
