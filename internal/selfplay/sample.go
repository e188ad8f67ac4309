package selfplay

import (
	"github.com/samber/lo"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/dataset"
)

// PolicyEntry is one non-zero slot of a sparse policy.
type PolicyEntry struct {
	Index uint16  `json:"index"` // from*64+to
	Prob  float32 `json:"prob"`
}

// Sample is one self-play training step. Rewards are in absolute player
// order and are filled in when the game ends.
type Sample struct {
	State   []float32
	Policy  []PolicyEntry
	Player  board.Player
	Rewards [board.NumPlayers]float64
}

// sparsePolicy converts an action-probability map to entries sorted by
// index. Moves sharing an index have their mass summed.
func sparsePolicy(probs map[board.Move]float64) []PolicyEntry {
	moves := lo.Keys(probs)
	board.SortMoves(moves)
	out := make([]PolicyEntry, 0, len(moves))
	for _, m := range moves {
		idx := uint16(m.PolicyIndex())
		if n := len(out); n > 0 && out[n-1].Index == idx {
			out[n-1].Prob += float32(probs[m])
			continue
		}
		out = append(out, PolicyEntry{Index: idx, Prob: float32(probs[m])})
	}
	return out
}

// DensePolicy expands the sparse policy to a PolicySize vector.
func (s Sample) DensePolicy() []float32 {
	dense := make([]float32, board.PolicySize)
	for _, e := range s.Policy {
		dense[e.Index] += e.Prob
	}
	return dense
}

// RelativeRewards rotates the rewards so index 0 is the player who moved.
func (s Sample) RelativeRewards() [board.NumPlayers]float32 {
	var rel [board.NumPlayers]float32
	for i := range rel {
		rel[i] = float32(s.Rewards[(int(s.Player)+i)%board.NumPlayers])
	}
	return rel
}

// Record converts the sample to its on-disk form.
func (s Sample) Record() dataset.Record {
	return dataset.Record{
		State:   s.State,
		Policy:  s.DensePolicy(),
		Rewards: s.RelativeRewards(),
	}
}

// Records converts samples for a dataset segment.
func Records(samples []Sample) []dataset.Record {
	return lo.Map(samples, func(s Sample, _ int) dataset.Record { return s.Record() })
}
