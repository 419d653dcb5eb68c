// Package policy provides the decision strategies agents use to choose an
// action from a normalized state vector and to learn from outcomes.
//
// Every variant draws its randomness from the *rand.Rand it was built with, so a
// simulation seeded once is reproducible end to end.
package policy

// Action is an index into the four-action space shared by every policy.
type Action int

const (
	ActionInvest     Action = iota // Leader funds the people; citizens comply
	ActionSteal                    // Most self-serving choice; citizens protest
	ActionMaintain                 // Status quo
	ActionPropaganda               // Buy trust with narrative
)

// NumActions is the size of the action space.
const NumActions = 4

// String returns a readable action name.
func (a Action) String() string {
	switch a {
	case ActionInvest:
		return "invest"
	case ActionSteal:
		return "steal"
	case ActionMaintain:
		return "maintain"
	case ActionPropaganda:
		return "propaganda"
	default:
		return "unknown"
	}
}

// Indexes into the 7-dimensional state vector.
const (
	StateTrust = iota
	StateWealth
	StateHappiness
	StateBudget
	StateInflation
	StateUnemployment
	StateInequality
	StateSize
)

// Policy maps a state vector to an action and learns from the result.
type Policy interface {
	Decide(state []float64) Action
	Learn(state []float64, action Action, reward float64, next []float64, done bool)
}

// Plurality returns the most frequent action; ties go to the first-listed action.
func Plurality(votes []Action) Action {
	var counts [NumActions]int
	for _, v := range votes {
		if v >= 0 && int(v) < NumActions {
			counts[v]++
		}
	}
	best, bestCount := ActionInvest, -1
	for _, v := range votes {
		if v < 0 || int(v) >= NumActions {
			continue
		}
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
