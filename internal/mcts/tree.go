package mcts

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/freeeve/chaturaji/internal/board"
)

// VirtualLoss is the value subtracted per pending visit when scoring a
// child, steering concurrent simulations away from in-flight paths.
const VirtualLoss = 1.0

const uctEpsilon = 1e-8

// ErrNoRoot is returned by operations on a released tree.
var ErrNoRoot = errors.New("mcts: tree has no root")

// Tree is a search tree whose nodes live in a shared NodePool. Node stats
// and child lists are guarded per node, so one tree may be searched from
// several goroutines.
type Tree struct {
	pool *NodePool
	root NodeID

	// CPuctBase enables the growing exploration constant
	// c = cpuct + ln((N + base + 1) / base) when positive.
	CPuctBase float64
}

// NewTree creates a tree rooted at a copy of pos.
func NewTree(pool *NodePool, pos *board.Position) *Tree {
	t := &Tree{pool: pool, root: NilNode}
	t.root = t.newNode(pos.Clone(), NilNode, board.Move{}, false, 0)
	return t
}

func (t *Tree) newNode(pos *board.Position, parent NodeID, m board.Move, hasMove bool, prior float64) NodeID {
	id := t.pool.Allocate()
	n := t.pool.Get(id)
	n.mu.Lock()
	n.pos = pos
	n.parent = parent
	n.move = m
	n.hasMove = hasMove
	n.prior = prior
	n.mu.Unlock()
	return id
}

func (t *Tree) Pool() *NodePool { return t.pool }
func (t *Tree) Root() NodeID    { return t.root }

// Position returns the node's position. Callers must not mutate it.
func (t *Tree) Position(id NodeID) *board.Position { return t.pool.Get(id).pos }

// RootKey is the Zobrist key of the root position, 0 for a released tree.
func (t *Tree) RootKey() uint64 {
	if t.root == NilNode {
		return 0
	}
	return t.Position(t.root).Hash()
}

// IsLeaf reports whether id has no children.
func (t *Tree) IsLeaf(id NodeID) bool {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.children) == 0
}

// IsTerminal reports whether id's position ends the game.
func (t *Tree) IsTerminal(id NodeID) bool {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos.IsTerminal()
}

// Children returns a copy of id's child list in expansion order.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NodeID(nil), n.children...)
}

func (t *Tree) Parent(id NodeID) NodeID {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// Move returns the move that led to id; ok is false for a root.
func (t *Tree) Move(id NodeID) (board.Move, bool) {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.move, n.hasMove
}

func (t *Tree) Prior(id NodeID) float64 {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prior
}

// SetPrior overrides a node's prior.
func (t *Tree) SetPrior(id NodeID, prior float64) {
	n := t.pool.Get(id)
	n.mu.Lock()
	n.prior = prior
	n.mu.Unlock()
}

func (t *Tree) Visits(id NodeID) int64 {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visits
}

// TotalValues returns the accumulated per-player values of id.
func (t *Tree) TotalValues(id NodeID) [board.NumPlayers]float64 {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.total
}

func (t *Tree) Pending(id NodeID) int32 { return t.pool.Get(id).pending.Load() }

// IncrementPending adds one in-flight visit to id.
func (t *Tree) IncrementPending(id NodeID) { t.pool.Get(id).pending.Add(1) }

// DecrementPending removes one in-flight visit, never going below zero.
// It reports false when the counter was already zero.
func (t *Tree) DecrementPending(id NodeID) bool {
	p := &t.pool.Get(id).pending
	for {
		cur := p.Load()
		if cur <= 0 {
			return false
		}
		if p.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// UpdateStats adds one visit and the per-player values to id.
func (t *Tree) UpdateStats(id NodeID, values [board.NumPlayers]float64) {
	n := t.pool.Get(id)
	n.mu.Lock()
	n.visits++
	for i, v := range values {
		n.total[i] += v
	}
	n.mu.Unlock()
}

// Backpropagate applies the same value vector to every node on path.
func (t *Tree) Backpropagate(path []NodeID, values [board.NumPlayers]float64) {
	for i := len(path) - 1; i >= 0; i-- {
		t.UpdateStats(path[i], values)
	}
}

func (t *Tree) exploration(cpuct, parentN float64) float64 {
	if t.CPuctBase <= 0 {
		return cpuct
	}
	return cpuct + math.Log((parentN+t.CPuctBase+1)/t.CPuctBase)
}

// childScore is the PUCT score of c seen by player, given the parent's
// effective visit count. It locks c only.
func (t *Tree) childScore(c *Node, player board.Player, parentN, cpuct float64) float64 {
	c.mu.Lock()
	visits := float64(c.visits)
	total := c.total[player]
	prior := c.prior
	c.mu.Unlock()
	pending := float64(c.pending.Load())

	eff := visits + pending
	q := 0.0
	if eff > uctEpsilon {
		q = (total - pending*VirtualLoss) / eff
	}
	u := t.exploration(cpuct, parentN) * prior * math.Sqrt(parentN+uctEpsilon) / (1 + eff)
	return q + u
}

// Score returns the selection score of child under parent.
func (t *Tree) Score(parent, child NodeID, cpuct float64) float64 {
	p := t.pool.Get(parent)
	p.mu.Lock()
	parentN := float64(p.visits)
	player := p.pos.SideToMove()
	p.mu.Unlock()
	parentN += float64(p.pending.Load())
	return t.childScore(t.pool.Get(child), player, parentN, cpuct)
}

// SelectChild returns the child of id with the highest score from the
// perspective of the player to move at id. Ties go to the earlier child.
// It returns NilNode for a leaf.
func (t *Tree) SelectChild(id NodeID, cpuct float64) NodeID {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.children) == 0 {
		return NilNode
	}
	parentN := float64(n.visits) + float64(n.pending.Load())
	player := n.pos.SideToMove()

	best, bestScore := NilNode, math.Inf(-1)
	for _, cid := range n.children {
		if s := t.childScore(t.pool.Get(cid), player, parentN, cpuct); s > bestScore {
			best, bestScore = cid, s
		}
	}
	return best
}

// Expand creates one child per policy entry, in sorted move order. It does
// nothing and returns false when id already has children or its position
// is terminal.
func (t *Tree) Expand(id NodeID, policy map[board.Move]float64) (bool, error) {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.children) > 0 || n.pos.IsTerminal() || len(policy) == 0 {
		return false, nil
	}

	moves := lo.Keys(policy)
	board.SortMoves(moves)
	children := make([]NodeID, 0, len(moves))
	for _, m := range moves {
		pos, err := n.pos.Child(m)
		if err != nil {
			for _, c := range children {
				t.pool.Deallocate(c)
			}
			return false, fmt.Errorf("expand %s: %w", m, err)
		}
		children = append(children, t.newNode(pos, id, m, true, policy[m]))
	}
	n.children = append(n.children, children...)
	return true, nil
}

// InjectNoise mixes noise into the priors of id's children:
// prior = (1-eps)*prior + eps*noise[i]. noise must have one entry per child.
func (t *Tree) InjectNoise(id NodeID, noise []float64, eps float64) {
	n := t.pool.Get(id)
	n.mu.Lock()
	children := append([]NodeID(nil), n.children...)
	n.mu.Unlock()
	for i, cid := range children {
		if i >= len(noise) {
			break
		}
		c := t.pool.Get(cid)
		c.mu.Lock()
		c.prior = (1-eps)*c.prior + eps*noise[i]
		c.mu.Unlock()
	}
}

// FindChild returns the child of id reached by m, or NilNode.
func (t *Tree) FindChild(id NodeID, m board.Move) NodeID {
	n := t.pool.Get(id)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, cid := range n.children {
		if t.pool.Get(cid).move == m {
			return cid
		}
	}
	return NilNode
}

// Advance makes the child reached by m the new root and frees the rest of
// the tree. It returns false, leaving the tree unchanged, when the root has
// no such child.
func (t *Tree) Advance(m board.Move) bool {
	if t.root == NilNode {
		return false
	}
	next := t.FindChild(t.root, m)
	if next == NilNode {
		return false
	}
	old := t.pool.Get(t.root)
	old.mu.Lock()
	siblings := old.children
	old.children = nil
	old.mu.Unlock()
	for _, cid := range siblings {
		if cid != next {
			t.releaseSubtree(cid)
		}
	}
	t.pool.Deallocate(t.root)

	nn := t.pool.Get(next)
	nn.mu.Lock()
	nn.parent = NilNode
	nn.mu.Unlock()
	t.root = next
	return true
}

// Reset frees the tree and starts over from a copy of pos.
func (t *Tree) Reset(pos *board.Position) {
	t.Release()
	t.root = t.newNode(pos.Clone(), NilNode, board.Move{}, false, 0)
}

// Release returns every node to the pool. The tree is unusable until Reset.
func (t *Tree) Release() {
	if t.root == NilNode {
		return
	}
	t.releaseSubtree(t.root)
	t.root = NilNode
}

func (t *Tree) releaseSubtree(id NodeID) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.pool.Get(cur)
		n.mu.Lock()
		stack = append(stack, n.children...)
		n.children = n.children[:0]
		n.mu.Unlock()
		t.pool.Deallocate(cur)
	}
}

// Size counts the nodes reachable from the root.
func (t *Tree) Size() int {
	if t.root == NilNode {
		return 0
	}
	count := 0
	stack := []NodeID{t.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, t.Children(cur)...)
	}
	return count
}
