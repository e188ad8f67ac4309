package mcts

import (
	"math"
	"math/rand"
	"testing"

	"github.com/freeeve/chaturaji/internal/board"
)

func mustUCI(t *testing.T, s string) board.Move {
	t.Helper()
	m, err := board.ParseUCI(s)
	if err != nil {
		t.Fatalf("ParseUCI(%q): %v", s, err)
	}
	return m
}

func expandedTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree(NewNodePool(64), board.NewPosition())
	ok, err := tree.Expand(tree.Root(), UniformPolicy(board.NewPosition()))
	if err != nil || !ok {
		t.Fatalf("Expand = %v, %v", ok, err)
	}
	return tree
}

func TestExpand(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	children := tree.Children(root)
	if len(children) != 8 {
		t.Fatalf("children = %d, want 8", len(children))
	}
	want := []string{"a2a3", "b1a3", "b1c3", "b2b3", "c2c3", "d1e1", "d1e2", "d2d3"}
	moves := make(map[string]bool)
	var prev board.Move
	for i, c := range children {
		m, ok := tree.Move(c)
		if !ok {
			t.Fatalf("child %d has no move", i)
		}
		if i > 0 && !prev.Less(m) {
			t.Errorf("children not in sorted order: %s before %s", prev, m)
		}
		prev = m
		moves[m.UCI()] = true
		if tree.Parent(c) != root {
			t.Errorf("child %s parent = %d", m, tree.Parent(c))
		}
		if p := tree.Position(c); p.SideToMove() != board.Blue {
			t.Errorf("child %s side = %s", m, p.SideToMove())
		}
		if math.Abs(tree.Prior(c)-0.125) > 1e-12 {
			t.Errorf("child %s prior = %v", m, tree.Prior(c))
		}
	}
	for _, w := range want {
		if !moves[w] {
			t.Errorf("missing child %s", w)
		}
	}

	ok, err := tree.Expand(root, UniformPolicy(board.NewPosition()))
	if ok || err != nil {
		t.Errorf("second Expand = %v, %v; want no-op", ok, err)
	}
	if len(tree.Children(root)) != 8 {
		t.Error("second Expand changed children")
	}
}

func TestExpandTerminalNoop(t *testing.T) {
	p := board.NewEmptyPosition(board.Red)
	if err := p.Place(board.Red, board.King, board.SquareAt(7, 3)); err != nil {
		t.Fatal(err)
	}
	for _, pl := range []board.Player{board.Blue, board.Yellow, board.Green} {
		if err := p.SetActive(pl, false); err != nil {
			t.Fatal(err)
		}
	}
	tree := NewTree(NewNodePool(8), p)
	if !tree.IsTerminal(tree.Root()) {
		t.Fatal("single active player should be terminal")
	}
	if ok, _ := tree.Expand(tree.Root(), UniformPolicy(p)); ok {
		t.Error("terminal node expanded")
	}
}

func TestScoreMonotonicity(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	for i := 0; i < 5; i++ {
		tree.UpdateStats(root, [4]float64{})
	}
	children := tree.Children(root)
	c := children[3]
	tree.UpdateStats(c, [4]float64{0.5, -0.5, 0, 0})

	t.Run("prior", func(t *testing.T) {
		prev := math.Inf(-1)
		for _, prior := range []float64{0, 0.1, 0.3, 0.9} {
			tree.SetPrior(c, prior)
			s := tree.Score(root, c, 2.5)
			if s <= prev {
				t.Errorf("prior %v: score %v not above %v", prior, s, prev)
			}
			prev = s
		}
	})
	t.Run("pending", func(t *testing.T) {
		tree.SetPrior(c, 0.2)
		prev := math.Inf(1)
		for i := 0; i < 4; i++ {
			s := tree.Score(root, c, 2.5)
			if s >= prev {
				t.Errorf("pending %d: score %v not below %v", i, s, prev)
			}
			prev = s
			tree.IncrementPending(c)
		}
		for tree.DecrementPending(c) {
		}
		if tree.Pending(c) != 0 {
			t.Errorf("pending = %d after draining", tree.Pending(c))
		}
	})
	t.Run("select avoids pending", func(t *testing.T) {
		for _, id := range children {
			tree.SetPrior(id, 0.125)
		}
		first := tree.SelectChild(root, 2.5)
		tree.IncrementPending(first)
		second := tree.SelectChild(root, 2.5)
		tree.DecrementPending(first)
		if first == second {
			t.Errorf("selection did not move away from the pending child %d", first)
		}
	})
}

func TestScoreUsesParentPlayer(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	tree.UpdateStats(root, [4]float64{})
	children := tree.Children(root)
	good, bad := children[0], children[1]
	// Red moves at the root, so only the red component matters.
	tree.UpdateStats(good, [4]float64{1, -1, -1, -1})
	tree.UpdateStats(bad, [4]float64{-1, 1, 1, 1})
	if tree.Score(root, good, 1) <= tree.Score(root, bad, 1) {
		t.Error("score ignores the parent player's value component")
	}
}

func TestDynamicExploration(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	for i := 0; i < 100; i++ {
		tree.UpdateStats(root, [4]float64{})
	}
	c := tree.Children(root)[0]
	plain := tree.Score(root, c, 2.5)
	tree.CPuctBase = 50
	grown := tree.Score(root, c, 2.5)
	if grown <= plain {
		t.Errorf("dynamic exploration score %v not above plain %v", grown, plain)
	}
}

func TestInjectNoise(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	noise := Dirichlet(rand.New(rand.NewSource(3)), 0.4, 8)
	tree.InjectNoise(root, noise, 0.25)
	sum := 0.0
	for i, c := range tree.Children(root) {
		want := 0.75*0.125 + 0.25*noise[i]
		if math.Abs(tree.Prior(c)-want) > 1e-12 {
			t.Errorf("child %d prior = %v, want %v", i, tree.Prior(c), want)
		}
		sum += tree.Prior(c)
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("priors sum to %v", sum)
	}
}

func TestAdvance(t *testing.T) {
	tree := expandedTree(t)
	pool := tree.Pool()
	next := tree.FindChild(tree.Root(), mustUCI(t, "b1c3"))
	if _, err := tree.Expand(next, UniformPolicy(tree.Position(next))); err != nil {
		t.Fatal(err)
	}
	grandchildren := len(tree.Children(next))
	if pool.Live() != 1+8+grandchildren {
		t.Fatalf("live = %d before advance", pool.Live())
	}

	if tree.Advance(mustUCI(t, "h1h2")) {
		t.Fatal("advanced along a move the root does not have")
	}
	if !tree.Advance(mustUCI(t, "b1c3")) {
		t.Fatal("advance failed")
	}
	if tree.Root() != next || tree.Parent(next) != NilNode {
		t.Errorf("root = %d parent = %d", tree.Root(), tree.Parent(next))
	}
	if got, want := pool.Live(), 1+grandchildren; got != want {
		t.Errorf("live = %d, want %d", got, want)
	}
	if tree.Size() != pool.Live() {
		t.Errorf("size %d != live %d", tree.Size(), pool.Live())
	}

	want, _ := board.NewPosition().Child(mustUCI(t, "b1c3"))
	if !tree.Reuse(want) {
		t.Error("Reuse rejected the matching position")
	}
	if tree.Reuse(board.NewPosition()) {
		t.Error("Reuse kept a mismatched tree")
	}
	if pool.Live() != 1 {
		t.Errorf("live = %d after reset", pool.Live())
	}
	tree.Release()
	if pool.Live() != 0 || tree.Size() != 0 {
		t.Errorf("live = %d after release", pool.Live())
	}
}

func TestBackpropagate(t *testing.T) {
	tree := expandedTree(t)
	root := tree.Root()
	c := tree.Children(root)[2]
	v := [4]float64{0.5, -0.25, 0.25, -0.5}
	tree.Backpropagate([]NodeID{root, c}, v)
	tree.Backpropagate([]NodeID{root, c}, v)
	for _, id := range []NodeID{root, c} {
		if tree.Visits(id) != 2 {
			t.Errorf("node %d visits = %d", id, tree.Visits(id))
		}
		if got := tree.TotalValues(id); got != [4]float64{1, -0.5, 0.5, -1} {
			t.Errorf("node %d totals = %v", id, got)
		}
	}
}
