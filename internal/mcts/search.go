package mcts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/eval"
)

// LeafEvaluator evaluates a batch of leaf positions. An implementation may
// return outputs alongside an error; an output with a nil Policy marks a
// leaf whose evaluation never arrived.
type LeafEvaluator interface {
	EvaluateLeaves(ctx context.Context, leaves []*board.Position) ([]eval.Output, error)
}

// SearchConfig configures a Searcher.
type SearchConfig struct {
	Simulations      int           // Simulations per move (default 128)
	BatchSize        int           // Leaves gathered before one evaluation call (default 48)
	CPuct            float64       // Exploration constant (default 2.5)
	CPuctBase        float64       // Enables the growing exploration term when > 0
	DirichletAlpha   float64       // Root noise concentration (default 0.4)
	DirichletEpsilon float64       // Root noise weight (default 0.25, negative disables noise)
	EvalTimeout      time.Duration // Max wait for one batch of evaluations (default 30s)
	Logger           zerolog.Logger
}

func (c *SearchConfig) setDefaults() {
	if c.Simulations <= 0 {
		c.Simulations = 128
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 48
	}
	if c.CPuct <= 0 {
		c.CPuct = 2.5
	}
	if c.DirichletAlpha <= 0 {
		c.DirichletAlpha = 0.4
	}
	if c.DirichletEpsilon == 0 {
		c.DirichletEpsilon = 0.25
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 30 * time.Second
	}
}

// SearchStats summarizes one Run.
type SearchStats struct {
	Simulations    int           `json:"simulations"`
	Evaluated      int           `json:"evaluated"`
	TerminalLeaves int           `json:"terminal_leaves"`
	Dropped        int           `json:"dropped"`
	SelectFailures int           `json:"select_failures"`
	Batches        int           `json:"batches"`
	Duration       time.Duration `json:"duration"`
}

// simulation is one in-flight traversal: the leaf and its root-to-leaf path.
type simulation struct {
	leaf NodeID
	path []NodeID
}

// Searcher runs batched simulations over a Tree.
type Searcher struct {
	cfg  SearchConfig
	log  zerolog.Logger
	eval LeafEvaluator
	rng  RNG
}

// NewSearcher creates a searcher over ev. rng drives root noise.
func NewSearcher(ev LeafEvaluator, rng RNG, cfg SearchConfig) *Searcher {
	cfg.setDefaults()
	return &Searcher{
		cfg:  cfg,
		log:  cfg.Logger.With().Str("component", "search").Logger(),
		eval: ev,
		rng:  rng,
	}
}

func (s *Searcher) Config() SearchConfig { return s.cfg }

// Run spends the simulation budget on tree. With addNoise, Dirichlet noise
// is mixed into the root priors exactly once: directly when the root is
// already expanded (a reused tree), otherwise into the policy of the root's
// first expansion.
func (s *Searcher) Run(ctx context.Context, tree *Tree, addNoise bool) (st SearchStats, err error) {
	start := time.Now()
	defer func() { st.Duration = time.Since(start) }()

	root := tree.Root()
	if root == NilNode {
		return st, ErrNoRoot
	}
	tree.CPuctBase = s.cfg.CPuctBase

	noisePending := addNoise && s.cfg.DirichletEpsilon > 0
	if noisePending && !tree.IsLeaf(root) {
		tree.InjectNoise(root, Dirichlet(s.rng, s.cfg.DirichletAlpha, len(tree.Children(root))), s.cfg.DirichletEpsilon)
		noisePending = false
	}

	batch := make([]simulation, 0, s.cfg.BatchSize)
	for sim := 0; sim < s.cfg.Simulations; sim++ {
		if err = ctx.Err(); err != nil {
			s.abandon(tree, batch, &st)
			return st, err
		}
		st.Simulations++

		path := []NodeID{root}
		cur := root
		failed := false
		for !tree.IsLeaf(cur) {
			next := tree.SelectChild(cur, s.cfg.CPuct)
			if next == NilNode || next == cur {
				failed = true
				break
			}
			cur = next
			path = append(path, cur)
		}
		if failed {
			st.SelectFailures++
			continue
		}

		if tree.IsTerminal(cur) {
			tree.Backpropagate(path, board.RankRewards(tree.Position(cur).Result()))
			st.TerminalLeaves++
			continue
		}

		tree.IncrementPending(cur)
		batch = append(batch, simulation{leaf: cur, path: path})
		if len(batch) >= s.cfg.BatchSize {
			if err = s.flush(ctx, tree, batch, &noisePending, &st); err != nil {
				return st, err
			}
			batch = batch[:0]
		}
	}
	err = s.flush(ctx, tree, batch, &noisePending, &st)
	return st, err
}

// flush evaluates the pending leaves, expands them and backpropagates the
// returned values. Leaves without a result are dropped after their virtual
// loss is undone.
func (s *Searcher) flush(ctx context.Context, tree *Tree, batch []simulation, noisePending *bool, st *SearchStats) error {
	if len(batch) == 0 {
		return nil
	}
	st.Batches++
	leaves := make([]*board.Position, len(batch))
	for i, sim := range batch {
		leaves[i] = tree.Position(sim.leaf)
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.EvalTimeout)
	outs, evalErr := s.eval.EvaluateLeaves(wctx, leaves)
	cancel()
	if len(outs) != len(batch) {
		outs = make([]eval.Output, len(batch))
	}

	root := tree.Root()
	dropped := 0
	for i, sim := range batch {
		tree.DecrementPending(sim.leaf)
		out := outs[i]
		if out.Policy == nil {
			dropped++
			continue
		}
		pos := leaves[i]
		policy, err := ProcessPolicy(out.Policy, pos)
		if err != nil {
			dropped++
			s.log.Warn().Err(err).Msg("bad policy, simulation dropped")
			continue
		}
		if len(policy) > 0 {
			if sim.leaf == root && *noisePending {
				policy = AddNoise(policy, s.rng, s.cfg.DirichletAlpha, s.cfg.DirichletEpsilon)
				*noisePending = false
			}
			if _, err := tree.Expand(sim.leaf, policy); err != nil {
				return fmt.Errorf("search: %w", err)
			}
		}
		tree.Backpropagate(sim.path, out.Absolute(pos.SideToMove()))
		st.Evaluated++
	}

	if dropped > 0 {
		st.Dropped += dropped
		s.log.Warn().Err(evalErr).Int("dropped", dropped).Int("batch", len(batch)).Msg("evaluations missing, simulations dropped")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// abandon undoes the virtual loss of simulations that will never be
// evaluated.
func (s *Searcher) abandon(tree *Tree, batch []simulation, st *SearchStats) {
	for _, sim := range batch {
		tree.DecrementPending(sim.leaf)
	}
	st.Dropped += len(batch)
}

// ErrNoMove is returned when the side to move has no candidate moves.
var ErrNoMove = errors.New("mcts: no move available")

// BestMove picks the root child with the most visits. With no visits it
// falls back to the highest prior; with no children to the first candidate
// move of the root position.
func (s *Searcher) BestMove(tree *Tree) (board.Move, error) {
	root := tree.Root()
	if root == NilNode {
		return board.Move{}, ErrNoRoot
	}
	children := tree.Children(root)
	if len(children) == 0 {
		moves := tree.Position(root).SideMoves()
		if len(moves) == 0 {
			return board.Move{}, ErrNoMove
		}
		s.log.Warn().Int("candidates", len(moves)).Msg("root not expanded, using first candidate")
		return moves[0], nil
	}

	best := lo.MaxBy(children, func(a, b NodeID) bool { return tree.Visits(a) > tree.Visits(b) })
	if tree.Visits(best) == 0 {
		s.log.Warn().Msg("no child visited, using priors")
		best = lo.MaxBy(children, func(a, b NodeID) bool { return tree.Prior(a) > tree.Prior(b) })
	}
	m, _ := tree.Move(best)
	return m, nil
}

// ActionProbs returns the root's move distribution: visits^(1/T)
// normalized, or one-hot on the most visited child when T is 0. A
// degenerate total falls back to uniform.
func ActionProbs(tree *Tree, temperature float64) map[board.Move]float64 {
	root := tree.Root()
	if root == NilNode {
		return nil
	}
	children := tree.Children(root)
	probs := make(map[board.Move]float64, len(children))
	if len(children) == 0 {
		return probs
	}
	visits := lo.Map(children, func(id NodeID, _ int) float64 { return float64(tree.Visits(id)) })
	moves := lo.Map(children, func(id NodeID, _ int) board.Move {
		m, _ := tree.Move(id)
		return m
	})

	if temperature == 0 {
		best := 0
		for i, v := range visits {
			if v > visits[best] {
				best = i
			}
		}
		for i, m := range moves {
			probs[m] = 0
			if i == best {
				probs[m] = 1
			}
		}
		return probs
	}

	powered := make([]float64, len(visits))
	total := 0.0
	for i, v := range visits {
		powered[i] = math.Pow(v, 1/temperature)
		total += powered[i]
	}
	for i, m := range moves {
		if total > 1e-9 {
			probs[m] = powered[i] / total
		} else {
			probs[m] = 1 / float64(len(moves))
		}
	}
	return probs
}

// SampleMove draws a move from probs. Moves are visited in sorted order so
// a seeded rng gives reproducible picks.
func SampleMove(probs map[board.Move]float64, rng RNG) (board.Move, error) {
	if len(probs) == 0 {
		return board.Move{}, ErrNoMove
	}
	moves := lo.Keys(probs)
	board.SortMoves(moves)
	total := lo.SumBy(moves, func(m board.Move) float64 { return probs[m] })
	if total <= 0 {
		return moves[rng.Intn(len(moves))], nil
	}
	r := rng.Float64() * total
	for _, m := range moves {
		r -= probs[m]
		if r < 0 {
			return m, nil
		}
	}
	// Rounding left r at or just above zero; take the last move with mass.
	for i := len(moves) - 1; i >= 0; i-- {
		if probs[moves[i]] > 0 {
			return moves[i], nil
		}
	}
	return moves[len(moves)-1], nil
}

// Reuse keeps the tree when its root matches pos and starts a fresh one
// otherwise. It reports whether the tree was kept.
func (t *Tree) Reuse(pos *board.Position) bool {
	if t.root != NilNode && t.RootKey() == pos.Hash() {
		return true
	}
	t.Reset(pos)
	return false
}
