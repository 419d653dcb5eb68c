package policy

import "math/rand"

// Hybrid override parameters.
const (
	OverrideThreshold = 0.6
	AssumedGreed      = 0.7
	AssumedPressure   = 0.5

	mockSamples    = 10
	forestTrees    = 10
	neighbours     = 3
	refitChance    = 0.05
	maxTrainingSet = 200
)

// MoralJudge scores how strongly an agent resists a self-serving action.
// *fuzzy.MoralityService satisfies it.
type MoralJudge interface {
	MoralResistance(greed, trust, pressure float64) float64
}

// Hybrid layers a strategic value learner with perceptual (random forest),
// decision (tree) and social (nearest neighbour) classifiers. The four votes
// are combined by plurality, then a moral check can veto stealing.
type Hybrid struct {
	strategic *ValueLearner
	layers    []Classifier
	judge     MoralJudge
	rng       *rand.Rand

	x [][]float64
	y []Action
}

// NewHybrid creates a hybrid policy whose classifiers are seeded on random
// mock samples drawn from rng.
func NewHybrid(rng *rand.Rand, judge MoralJudge) *Hybrid {
	h := &Hybrid{
		strategic: NewValueLearner(rng, DefaultValueLearnerConfig()),
		layers: []Classifier{
			NewRandomForest(rng, forestTrees),
			NewDecisionTree(rng),
			NewKNN(neighbours),
		},
		judge: judge,
		rng:   rng,
	}
	for i := 0; i < mockSamples; i++ {
		row := make([]float64, StateSize)
		for j := range row {
			row[j] = rng.Float64()
		}
		h.x = append(h.x, row)
		h.y = append(h.y, Action(rng.Intn(NumActions)))
	}
	h.refit()
	return h
}

// Decide votes the strategic action with the three classifier predictions,
// then reverts a steal to invest when moral resistance exceeds the threshold.
func (h *Hybrid) Decide(state []float64) Action {
	votes := make([]Action, 0, len(h.layers)+1)
	votes = append(votes, h.strategic.Decide(state))
	for _, c := range h.layers {
		votes = append(votes, c.Predict(state))
	}
	action := Plurality(votes)
	if action == ActionSteal && h.judge != nil && len(state) > StateTrust {
		if h.judge.MoralResistance(AssumedGreed, state[StateTrust]*100, AssumedPressure) > OverrideThreshold {
			return ActionInvest
		}
	}
	return action
}

// Learn trains the strategic layer on every outcome. Rewarded actions are
// occasionally added to the classifiers' training set, which is then refit.
func (h *Hybrid) Learn(state []float64, action Action, reward float64, next []float64, done bool) {
	h.strategic.Learn(state, action, reward, next, done)
	if reward <= 0 || action < 0 || int(action) >= NumActions {
		return
	}
	if h.rng.Float64() >= refitChance {
		return
	}
	h.x = append(h.x, append([]float64(nil), state...))
	h.y = append(h.y, action)
	if len(h.x) > maxTrainingSet {
		h.x = h.x[len(h.x)-maxTrainingSet:]
		h.y = h.y[len(h.y)-maxTrainingSet:]
	}
	h.refit()
}

// Snapshot reports the strategic layer.
func (h *Hybrid) Snapshot() LearnerSnapshot {
	s := h.strategic.Snapshot()
	s.Kind = "hybrid"
	return s
}

func (h *Hybrid) refit() {
	for _, c := range h.layers {
		c.Fit(h.x, h.y)
	}
}
