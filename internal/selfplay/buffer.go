package selfplay

import (
	"sync"

	"github.com/freeeve/chaturaji/internal/mcts"
)

// ReplayBuffer holds the most recent training samples. When full, the
// oldest samples are evicted first.
type ReplayBuffer struct {
	mu      sync.Mutex
	items   []Sample
	maxSize int
	evicted int64
}

// NewReplayBuffer creates a buffer with the given max size.
func NewReplayBuffer(maxSize int) *ReplayBuffer {
	if maxSize <= 0 {
		maxSize = 200000 // default
	}
	return &ReplayBuffer{
		items:   make([]Sample, 0, min(maxSize, 4096)),
		maxSize: maxSize,
	}
}

// AddBatch appends samples, evicting the oldest beyond capacity. Returns
// how many samples were evicted.
func (rb *ReplayBuffer) AddBatch(samples []Sample) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(samples) >= rb.maxSize {
		dropped := len(rb.items) + len(samples) - rb.maxSize
		rb.items = append(rb.items[:0], samples[len(samples)-rb.maxSize:]...)
		rb.evicted += int64(dropped)
		return dropped
	}

	dropped := 0
	if over := len(rb.items) + len(samples) - rb.maxSize; over > 0 {
		n := copy(rb.items, rb.items[over:])
		clear(rb.items[n:])
		rb.items = rb.items[:n]
		dropped = over
		rb.evicted += int64(over)
	}
	rb.items = append(rb.items, samples...)
	return dropped
}

// Len returns the current number of samples.
func (rb *ReplayBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.items)
}

// Cap returns the max number of samples held.
func (rb *ReplayBuffer) Cap() int { return rb.maxSize }

// Evicted returns how many samples have been pushed out so far.
func (rb *ReplayBuffer) Evicted() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.evicted
}

// Snapshot returns a copy of the buffer, oldest first.
func (rb *ReplayBuffer) Snapshot() []Sample {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return append([]Sample(nil), rb.items...)
}

// SampleBatch draws n distinct samples uniformly at random, or every sample
// in random order when the buffer holds fewer than n.
func (rb *ReplayBuffer) SampleBatch(n int, rng mcts.RNG) []Sample {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if n > len(rb.items) {
		n = len(rb.items)
	}
	if n <= 0 {
		return nil
	}
	idx := make([]int, len(rb.items))
	for i := range idx {
		idx[i] = i
	}
	out := make([]Sample, n)
	// Partial Fisher-Yates over the index list.
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = rb.items[idx[i]]
	}
	return out
}

// Clear removes all samples.
func (rb *ReplayBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.items)
	rb.items = rb.items[:0]
}
