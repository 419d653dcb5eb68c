package engine

import (
	"log/slog"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/social"
)

// WorldEvent is a global shock the external actor can trigger.
type WorldEvent struct {
	Name     string
	Severity float64
	Reason   string
}

// WorldEvents is the catalogue of global events.
var WorldEvents = []WorldEvent{
	{"Economic Recession", -10, "Happiness and wealth are declining globally."},
	{"Technological Boom", 15, "Efficiency increases wealth for all."},
	{"Natural Disaster", -15, "Infrastructure damage reduces happiness."},
	{"Scientific Discovery", 10, "Improved quality of life improves stability."},
}

const worldEventChance = 0.4

// processWorldEvents ends, starts and applies global events. It reports
// whether this was a scheduled event check.
func (s *Simulation) processWorldEvents(tick uint64) bool {
	ext := s.external()
	if ext == nil {
		return false
	}
	sched := s.cfg.Schedule
	e := ext.External

	if e.ActiveEvent != "" && due(tick, sched.WorldEventEndEvery) {
		slog.Info("world event ended", "tick", tick, "event", e.ActiveEvent)
		e.ActiveEvent, e.EventSeverity = "", 0
		s.news.Push(social.NewsEntry{
			Tick:    tick,
			Outcome: "Global Event Ended",
			Actor:   "Stability",
			Locale:  "World",
			Reason:  "The global crisis/boom has stabilized.",
		})
	}

	checked := due(tick, sched.WorldEventEvery)
	if e.ActiveEvent == "" && checked && s.rng.Float64() < worldEventChance {
		evt := WorldEvents[s.rng.Intn(len(WorldEvents))]
		e.ActiveEvent, e.EventSeverity = evt.Name, evt.Severity
		s.news.Push(social.NewsEntry{
			Tick:    tick,
			Outcome: "Global Event",
			Actor:   evt.Name,
			Locale:  "World",
			Reason:  evt.Reason,
		})
		slog.Info("world event", "tick", tick, "event", evt.Name, "severity", evt.Severity)
	}

	if e.ActiveEvent != "" {
		impact := e.EventSeverity / 10
		for _, a := range s.agents {
			if a.Citizen == nil {
				continue
			}
			a.Citizen.Happiness = agents.ClampScore(a.Citizen.Happiness + impact)
			a.Citizen.Wealth += impact
			if a.Citizen.Wealth < 0 {
				a.Citizen.Wealth = 0
			}
		}
	}
	return checked
}

func (s *Simulation) external() *agents.Agent {
	for _, a := range s.agents {
		if a.External != nil {
			return a
		}
	}
	return nil
}
