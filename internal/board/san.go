package board

import "strings"

// SAN renders m in the short algebraic form used in logs: piece letter
// (none for pawns), origin, 'x' on capture, destination and "=R" on
// promotion. m must start on an occupied square of p.
func (p *Position) SAN(m Move) string {
	pc := p.PieceAt(m.From)
	if pc.IsNone() {
		return "?" + m.UCI()
	}
	var b strings.Builder
	if pc.Type != Pawn {
		b.WriteByte(pc.Type.Letter())
	}
	b.WriteString(m.From.String())
	if p.occupied.Has(m.To) {
		b.WriteByte('x')
	}
	b.WriteString(m.To.String())
	if m.Promotion != NoPiece {
		b.WriteByte('=')
		b.WriteByte(m.Promotion.Letter())
	}
	return b.String()
}
