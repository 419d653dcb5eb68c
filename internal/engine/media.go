package engine

import (
	"fmt"
	"math"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/policy"
	"github.com/talgya/sworm/internal/social"
)

// Media parameters.
const (
	amplifyBoost       = 0.5
	credibilityPenalty = 0.01
	credibilityFloor   = 0.1
	moodSpillChance    = 0.1
)

// processMedia lets every outlet push its narrative onto the citizens in reach.
// Outlets learn from how many citizens they reached.
func (s *Simulation) processMedia(tick uint64) {
	for _, a := range s.agents {
		if a.Media == nil {
			continue
		}
		m := a.Media
		action := policy.Action(a.LastAction)

		force := m.Bias * m.Credibility * m.AlgorithmicAmplification
		if action == policy.ActionPropaganda {
			force += amplifyBoost * m.Credibility
		}
		roll := s.rng.Float64()
		if action == policy.ActionSteal || roll < m.DisinformationRate {
			force = -math.Abs(force)
			m.Credibility = math.Max(credibilityFloor, m.Credibility-credibilityPenalty)
			s.news.Push(social.NewsEntry{
				Tick:    tick,
				Outcome: "Narrative Warfare",
				Actor:   m.Ownership,
				Locale:  "Media",
				Reason:  fmt.Sprintf("%s outlet %s spreads disinformation", m.Ownership, a.ID.Short()),
			})
		}

		reached := 0
		for _, c := range s.agents {
			if c.Citizen == nil || c.Position.Dist(a.Position) >= m.Reach {
				continue
			}
			reached++
			c.TrustScore = agents.ClampScore(c.TrustScore + force)
			if s.rng.Float64() < moodSpillChance {
				c.Citizen.Happiness = agents.ClampScore(c.Citizen.Happiness + force)
			}
		}

		if p, ok := s.policies[a.ID]; ok && a.LastState != nil && a.LastAction >= 0 {
			p.Learn(a.LastState, action, float64(reached)*m.Credibility/10, a.LastState, false)
		}
	}
}
