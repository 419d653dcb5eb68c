package policy

import (
	"math"
	"math/rand"
)

// DefaultHidden is the default hidden width of the single-layer approximator.
const DefaultHidden = 16

// minProb keeps log-probabilities finite.
const minProb = 1e-12

// Approximator is a one-hidden-layer network producing action probabilities.
// Actions are sampled from the softmax; Learn performs a single REINFORCE step
// on reward * -log(p(action)) with no baseline.
type Approximator struct {
	net *Network
	rng *rand.Rand
}

// NewApproximator creates a single-layer approximator with the given hidden width.
func NewApproximator(rng *rand.Rand, hidden int) *Approximator {
	if hidden <= 0 {
		hidden = DefaultHidden
	}
	return &Approximator{
		net: NewNetwork(rng, 0.01, StateSize, hidden, NumActions),
		rng: rng,
	}
}

// Probabilities returns the action distribution for a state.
func (p *Approximator) Probabilities(state []float64) []float64 {
	return p.net.Probabilities(state)
}

// Decide samples an action from the policy distribution.
func (p *Approximator) Decide(state []float64) Action {
	return Action(sample(p.Probabilities(state), p.rng))
}

// Learn reinforces the action taken in proportion to the reward.
func (p *Approximator) Learn(state []float64, action Action, reward float64, _ []float64, _ bool) {
	if action < 0 || int(action) >= NumActions {
		return
	}
	probs := p.net.Probabilities(state)

	// d/dz of -reward*log(softmax(z)[a]) = reward * (p - onehot(a)).
	grad := make([]float64, NumActions)
	for i := range grad {
		grad[i] = reward * probs[i]
	}
	grad[action] -= reward
	p.net.Train(state, grad)
}

// Loss returns reward * -log(p(action)) for the current parameters.
func (p *Approximator) Loss(state []float64, action Action, reward float64) float64 {
	probs := p.Probabilities(state)
	return -reward * math.Log(math.Max(probs[action], minProb))
}
