package eval

import (
	"context"
	"errors"
	"math"

	"github.com/freeeve/chaturaji/internal/board"
)

// Output is one evaluation: policy logits indexed by Move.PolicyIndex and
// a value per player, ordered relative to the side to move (index 0 is the
// side to move, 1 the next seat, and so on).
type Output struct {
	Policy []float32
	Value  [board.NumPlayers]float32
}

// Absolute rotates the relative value vector into absolute player order for
// a position with side to move.
func (o Output) Absolute(side board.Player) [board.NumPlayers]float64 {
	var abs [board.NumPlayers]float64
	for i := 0; i < board.NumPlayers; i++ {
		abs[(int(side)+i)%board.NumPlayers] = float64(o.Value[i])
	}
	return abs
}

// Engine evaluates a batch of encoded states (each board.EncodedSize floats)
// and returns one Output per state, in order.
type Engine interface {
	Infer(ctx context.Context, states [][]float32) ([]Output, error)
}

// UniformEngine returns all-zero logits (a uniform policy after masking)
// and a fixed relative value for every state.
type UniformEngine struct {
	Value [board.NumPlayers]float32
}

func (u UniformEngine) Infer(ctx context.Context, states [][]float32) ([]Output, error) {
	out := make([]Output, len(states))
	for i := range states {
		out[i] = Output{Policy: make([]float32, board.PolicySize), Value: u.Value}
	}
	return out, nil
}

// ErrEngineFailed is returned by FailingEngine.
var ErrEngineFailed = errors.New("eval: engine failure")

// FailingEngine fails every call.
type FailingEngine struct{}

func (FailingEngine) Infer(ctx context.Context, states [][]float32) ([]Output, error) {
	return nil, ErrEngineFailed
}

// MaterialEngine scores states by the material on the piece planes without
// a network. The policy is uniform; each player's value is a squashed
// material difference against the average of the players still active.
type MaterialEngine struct{}

func (MaterialEngine) Infer(ctx context.Context, states [][]float32) ([]Output, error) {
	out := make([]Output, len(states))
	for i, s := range states {
		if len(s) < board.EncodedSize {
			return nil, errors.New("eval: short state encoding")
		}
		out[i] = Output{Policy: make([]float32, board.PolicySize), Value: materialValue(s)}
	}
	return out, nil
}

func materialValue(s []float32) [board.NumPlayers]float32 {
	var material [board.NumPlayers]float64
	var active [board.NumPlayers]bool
	side := 0
	for pl := 0; pl < board.NumPlayers; pl++ {
		for t := board.Pawn; t <= board.King; t++ {
			base := (pl*board.NumPieceTypes + int(t-1)) * board.NumSquares
			for sq := 0; sq < board.NumSquares; sq++ {
				material[pl] += float64(s[base+sq]) * float64(board.PieceValue(t))
			}
		}
		// Plane fills are uniform, so square 0 stands for the whole plane.
		active[pl] = s[(board.PiecePlanes+pl)*board.NumSquares] > 0
		if s[(board.PiecePlanes+board.NumPlayers+pl)*board.NumSquares] > 0 {
			side = pl
		}
	}
	n, sum := 0, 0.0
	for pl := range material {
		if active[pl] {
			n++
			sum += material[pl]
		}
	}
	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	var rel [board.NumPlayers]float32
	for i := 0; i < board.NumPlayers; i++ {
		pl := (side + i) % board.NumPlayers
		v := -1.0
		if active[pl] {
			v = math.Tanh((material[pl] - mean) / 10)
		}
		rel[i] = float32(v)
	}
	return rel
}

// Direct evaluates leaves synchronously on the calling goroutine. It is the
// leaf evaluator used by inference mode and the arena.
type Direct struct {
	Engine Engine
}

func (d Direct) EvaluateLeaves(ctx context.Context, leaves []*board.Position) ([]Output, error) {
	states := make([][]float32, len(leaves))
	for i, p := range leaves {
		states[i] = p.EncodeNew()
	}
	out, err := d.Engine.Infer(ctx, states)
	if err != nil {
		return nil, err
	}
	if len(out) != len(leaves) {
		return nil, errors.New("eval: engine returned wrong batch size")
	}
	return out, nil
}
