package policy

import "math/rand"

// Transition is one remembered (s, a, r, s', done) step.
type Transition struct {
	State  []float64
	Action Action
	Reward float64
	Next   []float64
	Done   bool
}

// ReplayBuffer is a fixed-capacity ring of transitions; the oldest is evicted first.
type ReplayBuffer struct {
	items []Transition
	head  int
	cap   int
	idx   []int
}

// NewReplayBuffer creates a buffer holding at most capacity transitions.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ReplayBuffer{cap: capacity}
}

// Len returns the number of stored transitions.
func (b *ReplayBuffer) Len() int { return len(b.items) }

// Cap returns the buffer capacity.
func (b *ReplayBuffer) Cap() int { return b.cap }

// Add stores t, evicting the oldest transition when full.
func (b *ReplayBuffer) Add(t Transition) {
	if len(b.items) < b.cap {
		b.items = append(b.items, t)
		return
	}
	b.items[b.head] = t
	b.head = (b.head + 1) % b.cap
}

// Oldest returns the oldest stored transition.
func (b *ReplayBuffer) Oldest() (Transition, bool) {
	if len(b.items) == 0 {
		return Transition{}, false
	}
	return b.items[b.head%len(b.items)], true
}

// Sample returns n distinct transitions chosen uniformly at random.
func (b *ReplayBuffer) Sample(rng *rand.Rand, n int) []Transition {
	if n > len(b.items) {
		n = len(b.items)
	}
	if len(b.idx) != len(b.items) {
		b.idx = make([]int, len(b.items))
	}
	for i := range b.idx {
		b.idx[i] = i
	}
	out := make([]Transition, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(b.idx)-i)
		b.idx[i], b.idx[j] = b.idx[j], b.idx[i]
		out[i] = b.items[b.idx[i]]
	}
	return out
}
