// Population dynamics: aging and replacement at end of lifespan.
package engine

import (
	"log/slog"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/social"
)

const turnoverNewsEvery = 10

// processTurnover ages every citizen and replaces those reaching their
// lifespan with a descendant. Deaths are collected before any replacement.
func (s *Simulation) processTurnover(tick uint64) {
	var dead []*agents.Agent
	for _, a := range s.agents {
		if a.Citizen == nil {
			continue
		}
		a.Citizen.Age++
		if a.Citizen.Age >= a.Citizen.Lifespan {
			dead = append(dead, a)
		}
	}
	if len(dead) == 0 {
		return
	}

	for i, parent := range dead {
		child := s.spawner.SpawnChild(parent)
		s.replace(parent.ID, child)
		if (i+1)%turnoverNewsEvery == 0 {
			locale := ""
			if st := s.nation.State(parent.Citizen.StateID); st != nil {
				locale = st.Name
			}
			s.news.Push(social.NewsEntry{
				Tick:    tick,
				Outcome: "Generational Turnover",
				Actor:   "New Generation",
				Locale:  locale,
				Reason:  "A new generation has inherited the future.",
			})
		}
	}
	slog.Debug("generational turnover", "tick", tick, "deaths", len(dead))
}
