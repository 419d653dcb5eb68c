package policy

import "math/rand"

// ValueLearnerConfig holds the hyper-parameters of a ValueLearner.
type ValueLearnerConfig struct {
	Hidden       int
	Capacity     int
	BatchSize    int
	Gamma        float64
	Epsilon      float64
	EpsilonDecay float64
	EpsilonMin   float64
	LearningRate float64
	// LongHorizon scales every remembered reward by LongHorizonFactor.
	LongHorizon bool
}

// LongHorizonFactor is the reward multiplier of long-horizon learners.
const LongHorizonFactor = 1.5

// DefaultValueLearnerConfig returns the canonical settings.
func DefaultValueLearnerConfig() ValueLearnerConfig {
	return ValueLearnerConfig{
		Hidden:       32,
		Capacity:     2000,
		BatchSize:    32,
		Gamma:        0.95,
		Epsilon:      1.0,
		EpsilonDecay: 0.995,
		EpsilonMin:   0.01,
		LearningRate: 0.001,
	}
}

// ValueLearner is an epsilon-greedy Q-learner over a two-hidden-layer value
// network with experience replay. The regression target uses the same network
// (no separate target network).
type ValueLearner struct {
	cfg     ValueLearnerConfig
	net     *Network
	memory  *ReplayBuffer
	rng     *rand.Rand
	epsilon float64
	updates int
}

// NewValueLearner creates a value learner drawing randomness from rng.
func NewValueLearner(rng *rand.Rand, cfg ValueLearnerConfig) *ValueLearner {
	def := DefaultValueLearnerConfig()
	if cfg.Hidden <= 0 {
		cfg.Hidden = def.Hidden
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &ValueLearner{
		cfg:     cfg,
		net:     NewNetwork(rng, cfg.LearningRate, StateSize, cfg.Hidden, cfg.Hidden, NumActions),
		memory:  NewReplayBuffer(cfg.Capacity),
		rng:     rng,
		epsilon: cfg.Epsilon,
	}
}

// Decide explores uniformly with probability epsilon, otherwise takes the
// action with the highest estimated value.
func (v *ValueLearner) Decide(state []float64) Action {
	if v.rng.Float64() <= v.epsilon {
		return Action(v.rng.Intn(NumActions))
	}
	return Action(argmax(v.net.Forward(state)))
}

// Values returns the estimated action values for a state.
func (v *ValueLearner) Values(state []float64) []float64 {
	return v.net.Forward(state)
}

// Learn remembers the transition and, once the buffer holds a full batch,
// replays a minibatch and decays epsilon.
func (v *ValueLearner) Learn(state []float64, action Action, reward float64, next []float64, done bool) {
	if v.cfg.LongHorizon {
		reward *= LongHorizonFactor
	}
	v.memory.Add(Transition{
		State:  append([]float64(nil), state...),
		Action: action,
		Reward: reward,
		Next:   append([]float64(nil), next...),
		Done:   done,
	})
	v.replay()
}

func (v *ValueLearner) replay() {
	if v.memory.Len() < v.cfg.BatchSize {
		return
	}
	for _, t := range v.memory.Sample(v.rng, v.cfg.BatchSize) {
		if t.Action < 0 || int(t.Action) >= NumActions {
			continue
		}
		target := t.Reward
		if !t.Done {
			next := v.net.Forward(t.Next)
			target += v.cfg.Gamma * next[argmax(next)]
		}
		out := v.net.Forward(t.State)
		// MSE over the output vector with only the taken action's target changed.
		grad := make([]float64, NumActions)
		grad[t.Action] = 2 * (out[t.Action] - target) / NumActions
		v.net.Train(t.State, grad)
	}
	v.updates++
	if v.epsilon > v.cfg.EpsilonMin {
		v.epsilon *= v.cfg.EpsilonDecay
	}
}

// Epsilon returns the current exploration rate.
func (v *ValueLearner) Epsilon() float64 { return v.epsilon }

// LearnerSnapshot is a read-only summary of a value learner.
type LearnerSnapshot struct {
	Kind        string  `json:"type"`
	Epsilon     float64 `json:"epsilon"`
	MemorySize  int     `json:"memory_size"`
	Capacity    int     `json:"capacity"`
	Updates     int     `json:"updates"`
	LongHorizon bool    `json:"long_horizon"`
}

// Snapshot returns the learner's current summary.
func (v *ValueLearner) Snapshot() LearnerSnapshot {
	return LearnerSnapshot{
		Kind:        "value_learner",
		Epsilon:     v.epsilon,
		MemorySize:  v.memory.Len(),
		Capacity:    v.memory.Cap(),
		Updates:     v.updates,
		LongHorizon: v.cfg.LongHorizon,
	}
}

// Snapshotter is implemented by policies that expose a learner summary.
type Snapshotter interface {
	Snapshot() LearnerSnapshot
}
