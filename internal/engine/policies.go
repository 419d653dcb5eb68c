package engine

import (
	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/policy"
)

// newPolicy builds the decision policy for an agent's variant; nil for agents
// that do not decide.
func (s *Simulation) newPolicy(a *agents.Agent) policy.Policy {
	switch a.Kind {
	case agents.KindSupremeLeader:
		cfg := policy.DefaultValueLearnerConfig()
		cfg.LongHorizon = true
		return policy.NewValueLearner(s.rng, cfg)
	case agents.KindLeader:
		return policy.NewHybrid(s.rng, s.morality)
	case agents.KindCitizen:
		return policy.NewRuleBased(policy.CivicRules()...)
	case agents.KindMedia:
		return policy.NewApproximator(s.rng, s.cfg.MediaHidden)
	default:
		return nil
	}
}

func (s *Simulation) bind(a *agents.Agent) {
	if p := s.newPolicy(a); p != nil {
		s.policies[a.ID] = p
	}
}
