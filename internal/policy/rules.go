package policy

// Rule is a predicate over the state vector paired with the action it selects.
type Rule struct {
	Name   string
	When   func(state []float64) bool
	Action Action
}

// RuleBased picks the action of the first matching rule, ActionInvest otherwise.
// It does not learn.
type RuleBased struct {
	rules []Rule
}

// NewRuleBased creates a rule-based policy evaluated in the given order.
func NewRuleBased(rules ...Rule) *RuleBased {
	return &RuleBased{rules: rules}
}

// Decide returns the action of the first rule that matches.
func (p *RuleBased) Decide(state []float64) Action {
	for _, r := range p.rules {
		if r.When(state) {
			return r.Action
		}
	}
	return ActionInvest
}

// Learn is a no-op.
func (p *RuleBased) Learn([]float64, Action, float64, []float64, bool) {}

// CivicRules is the default citizen rule set: protest when trust or happiness
// collapses, hold back under economic pressure, echo the regime when trust is high.
func CivicRules() []Rule {
	return []Rule{
		{Name: "distrust", Action: ActionSteal, When: func(s []float64) bool {
			return s[StateTrust] < 0.3
		}},
		{Name: "misery", Action: ActionSteal, When: func(s []float64) bool {
			return s[StateHappiness] < 0.3
		}},
		{Name: "squeeze", Action: ActionMaintain, When: func(s []float64) bool {
			return s[StateInflation]+s[StateUnemployment] > 0.3
		}},
		{Name: "loyal", Action: ActionPropaganda, When: func(s []float64) bool {
			return s[StateTrust] > 0.7
		}},
	}
}
