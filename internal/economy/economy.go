// Package economy applies a state leader's chosen action to the state's
// citizens and scores the outcome for the leader's policy.
package economy

import (
	"math/rand"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/policy"
)

// NationalBudget is the supreme leader's per-tick budget.
const NationalBudget = 1000.0

const (
	investment      = 10.0
	fairShareFloor  = 0.8
	unemploymentCut = 0.8
	layoffMisery    = 5.0
	performanceKeep = 0.8
)

// Effect is one row of the action-effect table.
type Effect struct {
	GainShare         float64 // Fraction of budget the leader pockets
	PeopleShare       float64 // Fraction of budget passed to citizens
	TrustChange       float64
	HappinessModifier float64
}

// Effects is indexed by policy.Action.
var Effects = [policy.NumActions]Effect{
	policy.ActionInvest:     {GainShare: 0, PeopleShare: 1, TrustChange: 5, HappinessModifier: 1},
	policy.ActionSteal:      {GainShare: 0.5, PeopleShare: 0.4, TrustChange: -10, HappinessModifier: -2},
	policy.ActionMaintain:   {GainShare: 0.1, PeopleShare: 0.9, TrustChange: 0, HappinessModifier: 0},
	policy.ActionPropaganda: {GainShare: 0, PeopleShare: 0.7, TrustChange: 15, HappinessModifier: -1},
}

// Conditions are the macro-economic rates in force for the tick.
type Conditions struct {
	Inflation    float64
	Unemployment float64
}

// Outcome summarizes one state's economic step.
type Outcome struct {
	StateID      agents.StateID `json:"state_id"`
	LeaderID     agents.AgentID `json:"leader_id"`
	Action       policy.Action  `json:"action"`
	PersonalGain float64        `json:"personal_gain"`
	Funds        float64        `json:"funds_for_people"`
	TrustChange  float64        `json:"trust_change"`
	AvgHappiness float64        `json:"avg_happiness"`
	Reward       float64        `json:"reward"`
}

// Service runs per-state economies. Citizen noise comes from the shared RNG.
type Service struct {
	rng *rand.Rand
}

// NewService creates an economy service drawing from rng.
func NewService(rng *rand.Rand) *Service {
	return &Service{rng: rng}
}

// DistributeBudget sets the supreme leader's total budget and splits it evenly
// across the state leaders. It returns the per-leader allocation.
func DistributeBudget(supreme *agents.Agent, leaders []*agents.Agent, total float64) float64 {
	if supreme != nil && supreme.SupremeLeader != nil {
		supreme.SupremeLeader.TotalBudget = total
	}
	if len(leaders) == 0 {
		return 0
	}
	share := total / float64(len(leaders))
	for _, l := range leaders {
		if l.Leader != nil {
			l.Leader.BudgetAllocated = share
		}
	}
	return share
}

// ActionOf returns the leader's last chosen action, Maintain when it has none.
func ActionOf(leader *agents.Agent) policy.Action {
	a := policy.Action(leader.LastAction)
	if a < 0 || int(a) >= policy.NumActions {
		return policy.ActionMaintain
	}
	return a
}

// ProcessState applies the leader's last action to its citizens. It reports
// false when there is nothing to do (no leader payload or no citizens).
func (s *Service) ProcessState(leader *agents.Agent, citizens []*agents.Agent, cond Conditions) (Outcome, bool) {
	if leader == nil || leader.Leader == nil || len(citizens) == 0 {
		return Outcome{}, false
	}
	l := leader.Leader
	action := ActionOf(leader)
	eff := Effects[action]
	budget := l.BudgetAllocated

	gain := budget * eff.GainShare
	funds := budget * eff.PeopleShare
	if action == policy.ActionInvest && l.Wealth > investment {
		l.Wealth -= investment
		funds += investment
	}
	l.Wealth += gain
	l.CorruptionLevel = gain

	n := float64(len(citizens))
	share := funds / n * (1 - cond.Inflation)
	fair := budget / n

	var happiness, trust float64
	for _, a := range citizens {
		c := a.Citizen
		if c == nil {
			continue
		}
		if s.rng.Float64() < c.Hope {
			c.Wealth += s.rng.Float64() * 2
		} else {
			c.Wealth -= s.rng.Float64()
		}
		c.Wealth += share

		a.TrustScore = agents.ClampScore(a.TrustScore + eff.TrustChange)

		if s.rng.Float64() < cond.Unemployment {
			c.Wealth *= unemploymentCut
			c.Happiness -= layoffMisery
		}
		if share < fair*fairShareFloor {
			c.Happiness -= 2
		} else {
			c.Happiness++
		}
		c.Happiness = agents.ClampScore(c.Happiness + eff.HappinessModifier)
		if c.Wealth < 0 {
			c.Wealth = 0
		}

		happiness += c.Happiness
		trust += a.TrustScore
	}
	avgHappiness := happiness / n

	// The leader's standing follows the people it governs.
	leader.TrustScore = agents.ClampScore(trust / n)
	l.PerformanceScore = performanceKeep*l.PerformanceScore + (1-performanceKeep)*avgHappiness

	return Outcome{
		StateID:      l.StateID,
		LeaderID:     leader.ID,
		Action:       action,
		PersonalGain: gain,
		Funds:        funds,
		TrustChange:  eff.TrustChange,
		AvgHappiness: avgHappiness,
		Reward:       Reward(gain, eff.TrustChange, avgHappiness),
	}, true
}

// Reward scores an economic step for the leader's policy.
func Reward(gain, trustChange, avgHappiness float64) float64 {
	return gain + trustChange*2 + avgHappiness/10
}
