// Package mcts implements the search tree: a chunked node arena addressed
// by integer ids, PUCT selection with virtual loss, expansion and
// per-player value backpropagation, and the per-move simulation driver.
package mcts

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/freeeve/chaturaji/internal/board"
)

// NodeID addresses a node inside a NodePool.
type NodeID int32

// NilNode is the id of no node (the root's parent, an unset handle).
const NilNode NodeID = -1

// DefaultChunkSize is the number of node slots added per pool growth.
const DefaultChunkSize = 100000

// Node is one tree vertex. Stats and children are guarded by mu; pending
// (the virtual-loss counter) is atomic.
type Node struct {
	mu       sync.Mutex
	pos      *board.Position
	parent   NodeID
	move     board.Move
	hasMove  bool
	children []NodeID
	prior    float64
	visits   int64
	total    [board.NumPlayers]float64
	pending  atomic.Int32

	// owned by the pool mutex
	inUse bool
}

// NodePool hands out node slots from fixed-size chunks. Chunks are never
// freed, so a slot's address is stable for the pool's lifetime. The free
// list is serialized by one mutex; Get is lock-free.
type NodePool struct {
	chunkSize int
	chunks    atomic.Pointer[[]*[]Node]

	mu        sync.Mutex
	free      []NodeID
	allocated int64
	freed     int64
	peak      int64
}

// NewNodePool creates a pool that grows by chunkSize slots at a time
// (DefaultChunkSize when chunkSize <= 0). The first chunk is allocated
// lazily.
func NewNodePool(chunkSize int) *NodePool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	p := &NodePool{chunkSize: chunkSize}
	empty := make([]*[]Node, 0)
	p.chunks.Store(&empty)
	return p
}

// grow appends a chunk and pushes its slots onto the free list so the
// lowest ids are handed out first. Caller holds p.mu.
func (p *NodePool) grow() {
	dir := *p.chunks.Load()
	chunk := make([]Node, p.chunkSize)
	base := NodeID(len(dir) * p.chunkSize)

	next := make([]*[]Node, len(dir)+1)
	copy(next, dir)
	next[len(dir)] = &chunk
	p.chunks.Store(&next)

	for i := p.chunkSize - 1; i >= 0; i-- {
		p.free = append(p.free, base+NodeID(i))
	}
}

// Allocate returns a reset node slot.
func (p *NodePool) Allocate() NodeID {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.grow()
	}
	id := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	n := p.Get(id)
	n.inUse = true
	p.allocated++
	if live := p.allocated - p.freed; live > p.peak {
		p.peak = live
	}
	p.mu.Unlock()

	n.mu.Lock()
	n.pos = nil
	n.parent = NilNode
	n.move = board.Move{}
	n.hasMove = false
	n.children = n.children[:0]
	n.prior = 0
	n.visits = 0
	n.total = [board.NumPlayers]float64{}
	n.pending.Store(0)
	n.mu.Unlock()
	return id
}

// Deallocate returns id to the free list. Freeing a slot twice or an id
// the pool never issued panics.
func (p *NodePool) Deallocate(id NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || int(id) >= len(*p.chunks.Load())*p.chunkSize {
		panic(fmt.Sprintf("mcts: deallocate of foreign node %d", id))
	}
	n := p.Get(id)
	if !n.inUse {
		panic(fmt.Sprintf("mcts: double free of node %d", id))
	}
	n.inUse = false
	n.pos = nil
	p.free = append(p.free, id)
	p.freed++
}

// Get resolves id to its slot.
func (p *NodePool) Get(id NodeID) *Node {
	dir := *p.chunks.Load()
	return &(*dir[int(id)/p.chunkSize])[int(id)%p.chunkSize]
}

// Live is the number of allocated, not yet freed nodes.
func (p *NodePool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.allocated - p.freed)
}

// Capacity is the number of slots across all chunks.
func (p *NodePool) Capacity() int {
	return len(*p.chunks.Load()) * p.chunkSize
}

// PoolStats reports allocator counters.
type PoolStats struct {
	Allocated int64 `json:"allocated"`
	Freed     int64 `json:"freed"`
	Peak      int64 `json:"peak"`
	Live      int64 `json:"live"`
	Capacity  int   `json:"capacity"`
}

func (p *NodePool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Allocated: p.allocated,
		Freed:     p.freed,
		Peak:      p.peak,
		Live:      p.allocated - p.freed,
		Capacity:  p.Capacity(),
	}
}
