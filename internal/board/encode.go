package board

import "golang.org/x/exp/constraints"

// Encoder planes, each NumSquares floats, laid out as plane*64+square.
const (
	PiecePlanes    = NumPlayers * NumPieceTypes
	activePlane    = PiecePlanes
	sidePlane      = activePlane + NumPlayers
	scorePlane     = sidePlane + NumPlayers
	progressPlane  = scorePlane + NumPlayers
	NumPlanes      = progressPlane + 1
	EncodedSize    = NumPlanes * NumSquares
	scoreNormalize = 100
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Encode writes the network input planes for p into dst, which must hold at
// least EncodedSize floats. It returns dst[:EncodedSize].
//
//	0-19  piece occupancy, plane player*5 + (type-1)
//	20-23 active status per player
//	24-27 one-hot side to move
//	28-31 capture points / 100 per player
//	32    rounds since last reset / 50, clamped to [0, 1]
func (p *Position) Encode(dst []float32) []float32 {
	if cap(dst) < EncodedSize {
		dst = make([]float32, EncodedSize)
	}
	dst = dst[:EncodedSize]
	clear(dst)

	for pl := Player(0); pl < NumPlayers; pl++ {
		for t := Pawn; t <= King; t++ {
			base := (int(pl)*NumPieceTypes + int(t-1)) * NumSquares
			bb := p.pieces[pl][t]
			for bb != 0 {
				dst[base+int(bb.PopLSB())] = 1
			}
		}
		if p.active[pl] {
			fillPlane(dst, activePlane+int(pl), 1)
		}
		fillPlane(dst, scorePlane+int(pl), float32(p.scores[pl])/scoreNormalize)
	}
	if p.side >= 0 && p.side < NumPlayers {
		fillPlane(dst, sidePlane+int(p.side), 1)
	}
	progress := float32(p.moveNumber-p.lastReset) / NoProgressLimit
	fillPlane(dst, progressPlane, clamp(progress, 0, 1))
	return dst
}

// EncodeNew allocates and returns a fresh encoding of p.
func (p *Position) EncodeNew() []float32 {
	return p.Encode(make([]float32, EncodedSize))
}

func fillPlane(dst []float32, plane int, v float32) {
	if v == 0 {
		return
	}
	s := dst[plane*NumSquares : (plane+1)*NumSquares]
	for i := range s {
		s[i] = v
	}
}
