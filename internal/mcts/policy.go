package mcts

import (
	"fmt"
	"math"

	"github.com/freeeve/chaturaji/internal/board"
)

// ProcessPolicy turns raw policy logits into a distribution over the legal
// candidates of the side to move: a softmax over their logits only. It
// returns an empty map when the side has no moves.
func ProcessPolicy(logits []float32, pos *board.Position) (map[board.Move]float64, error) {
	if len(logits) != board.PolicySize {
		return nil, fmt.Errorf("policy has %d logits, want %d", len(logits), board.PolicySize)
	}
	moves := pos.SideMoves()
	probs := make(map[board.Move]float64, len(moves))
	if len(moves) == 0 {
		return probs, nil
	}

	maxLogit := math.Inf(-1)
	for _, m := range moves {
		maxLogit = math.Max(maxLogit, float64(logits[m.PolicyIndex()]))
	}
	sum := 0.0
	for _, m := range moves {
		e := math.Exp(float64(logits[m.PolicyIndex()]) - maxLogit)
		probs[m] = e
		sum += e
	}
	for m := range probs {
		probs[m] /= sum
	}
	return probs, nil
}

// UniformPolicy spreads probability evenly over the side's candidates.
func UniformPolicy(pos *board.Position) map[board.Move]float64 {
	moves := pos.SideMoves()
	probs := make(map[board.Move]float64, len(moves))
	for _, m := range moves {
		probs[m] = 1 / float64(len(moves))
	}
	return probs
}
