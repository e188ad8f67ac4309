package selfplay

import (
	"math/rand"
	"testing"

	"github.com/freeeve/chaturaji/internal/board"
)

func tagged(from, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{Player: board.Player((from + i) % 4), State: []float32{float32(from + i)}}
	}
	return out
}

func tags(samples []Sample) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(s.State[0])
	}
	return out
}

func TestReplayBufferEviction(t *testing.T) {
	tests := []struct {
		name    string
		batches []int
		want    []int
		evicted int64
	}{
		{"under capacity", []int{2, 2}, []int{0, 1, 2, 3}, 0},
		{"oldest evicted", []int{3, 3}, []int{1, 2, 3, 4, 5}, 1},
		{"batch larger than capacity", []int{1, 7}, []int{3, 4, 5, 6, 7}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewReplayBuffer(5)
			next := 0
			for _, n := range tt.batches {
				rb.AddBatch(tagged(next, n))
				next += n
			}
			got := tags(rb.Snapshot())
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
			if rb.Evicted() != tt.evicted {
				t.Errorf("evicted = %d, want %d", rb.Evicted(), tt.evicted)
			}
		})
	}
}

func TestReplayBufferSampleBatch(t *testing.T) {
	rb := NewReplayBuffer(100)
	rb.AddBatch(tagged(0, 20))
	rng := rand.New(rand.NewSource(4))

	batch := rb.SampleBatch(8, rng)
	if len(batch) != 8 {
		t.Fatalf("batch size = %d", len(batch))
	}
	seen := map[int]bool{}
	for _, v := range tags(batch) {
		if seen[v] {
			t.Errorf("sample %d drawn twice", v)
		}
		seen[v] = true
	}
	if got := rb.SampleBatch(50, rng); len(got) != 20 {
		t.Errorf("oversized draw returned %d samples", len(got))
	}
	if rb.Len() != 20 {
		t.Errorf("sampling changed the buffer: len %d", rb.Len())
	}

	rb.Clear()
	if rb.Len() != 0 || rb.SampleBatch(3, rng) != nil {
		t.Error("buffer not empty after Clear")
	}
}

func TestSampleConversions(t *testing.T) {
	promo := board.Move{From: board.SquareAt(1, 0), To: board.SquareAt(0, 0), Promotion: board.Rook}
	plain := board.Move{From: board.SquareAt(1, 0), To: board.SquareAt(0, 0)}
	other := board.Move{From: board.SquareAt(6, 0), To: board.SquareAt(5, 0)}
	probs := map[board.Move]float64{promo: 0.25, plain: 0.25, other: 0.5}

	s := Sample{
		State:   make([]float32, board.EncodedSize),
		Policy:  sparsePolicy(probs),
		Player:  board.Yellow,
		Rewards: [4]float64{-1, 0.25, 1, -0.25},
	}
	if len(s.Policy) != 2 {
		t.Fatalf("sparse policy = %+v, want shared index merged", s.Policy)
	}
	if s.Policy[0].Index >= s.Policy[1].Index {
		t.Errorf("entries not sorted: %+v", s.Policy)
	}

	dense := s.DensePolicy()
	if len(dense) != board.PolicySize {
		t.Fatalf("dense len = %d", len(dense))
	}
	if dense[plain.PolicyIndex()] != 0.5 || dense[other.PolicyIndex()] != 0.5 {
		t.Errorf("dense = %v / %v", dense[plain.PolicyIndex()], dense[other.PolicyIndex()])
	}

	want := [4]float32{1, -0.25, -1, 0.25}
	if got := s.RelativeRewards(); got != want {
		t.Errorf("relative rewards = %v, want %v", got, want)
	}
	rec := s.Record()
	if rec.Rewards != want || len(rec.Policy) != board.PolicySize || len(rec.State) != board.EncodedSize {
		t.Errorf("record = %+v", rec.Rewards)
	}
}
