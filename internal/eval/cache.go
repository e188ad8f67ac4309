package eval

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/freeeve/chaturaji/internal/board"
)

const cacheShards = 64

// missingLogitGap is how far below the smallest stored logit the policy
// entries dropped by top-K truncation are placed.
const missingLogitGap = 10

type policyEntry struct {
	index uint16
	logit float32
}

type cacheEntry struct {
	key    uint64
	policy []policyEntry
	value  [board.NumPlayers]float32
	ref    bool
}

// ResultCache is a sharded cache from position hash to a truncated
// evaluation: the top-K policy logits and the value vector. Each shard is
// a fixed ring of slots replaced with the clock (second chance) policy.
type ResultCache struct {
	shards [cacheShards]*cacheShard
	topK   int
	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheShard struct {
	mu    sync.Mutex
	index map[uint64]int
	slots []cacheEntry
	hand  int
}

// NewResultCache creates a cache holding about entries evaluations with the
// top topK policy logits each.
func NewResultCache(entries, topK int) *ResultCache {
	perShard := entries / cacheShards
	if perShard < 1 {
		perShard = 1
	}
	if topK <= 0 {
		topK = 32
	}
	c := &ResultCache{topK: topK}
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			index: make(map[uint64]int, perShard),
			slots: make([]cacheEntry, 0, perShard),
		}
	}
	return c
}

func (c *ResultCache) shard(key uint64) *cacheShard {
	return c.shards[key%cacheShards]
}

// Get returns the cached evaluation for key. Logits outside the stored top
// K are filled with a floor well below the smallest kept logit.
func (c *ResultCache) Get(key uint64) (Output, bool) {
	s := c.shard(key)
	s.mu.Lock()
	i, ok := s.index[key]
	var e cacheEntry
	if ok {
		s.slots[i].ref = true
		e = s.slots[i]
	}
	s.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return Output{}, false
	}
	c.hits.Add(1)

	floor := float32(0)
	if len(e.policy) > 0 {
		floor = e.policy[len(e.policy)-1].logit - missingLogitGap
	}
	policy := make([]float32, board.PolicySize)
	for i := range policy {
		policy[i] = floor
	}
	for _, pe := range e.policy {
		policy[pe.index] = pe.logit
	}
	return Output{Policy: policy, Value: e.value}, true
}

// Put stores out under key, keeping only the topK largest logits.
func (c *ResultCache) Put(key uint64, out Output) {
	entry := cacheEntry{key: key, policy: topLogits(out.Policy, c.topK), value: out.Value}

	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		entry.ref = true
		s.slots[i] = entry
		return
	}
	if len(s.slots) < cap(s.slots) {
		s.index[key] = len(s.slots)
		s.slots = append(s.slots, entry)
		return
	}
	// Clock sweep: clear reference bits until an unreferenced slot turns up.
	for s.slots[s.hand].ref {
		s.slots[s.hand].ref = false
		s.hand = (s.hand + 1) % len(s.slots)
	}
	delete(s.index, s.slots[s.hand].key)
	s.slots[s.hand] = entry
	s.index[key] = s.hand
	s.hand = (s.hand + 1) % len(s.slots)
}

// topLogits returns the k largest logits in descending order.
func topLogits(policy []float32, k int) []policyEntry {
	all := make([]policyEntry, 0, len(policy))
	for i, l := range policy {
		all = append(all, policyEntry{index: uint16(i), logit: l})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].logit != all[j].logit {
			return all[i].logit > all[j].logit
		}
		return all[i].index < all[j].index
	})
	if len(all) > k {
		all = all[:k]
	}
	return append([]policyEntry(nil), all...)
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Stats returns cache statistics.
func (c *ResultCache) Stats() CacheStats {
	st := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	for _, s := range c.shards {
		s.mu.Lock()
		st.Size += len(s.slots)
		st.Capacity += cap(s.slots)
		s.mu.Unlock()
	}
	return st
}

// Clear empties the cache.
func (c *ResultCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.index = make(map[uint64]int, cap(s.slots))
		s.slots = s.slots[:0]
		s.hand = 0
		s.mu.Unlock()
	}
	c.hits.Store(0)
	c.misses.Store(0)
}
