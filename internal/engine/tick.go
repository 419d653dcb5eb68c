// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// Cycle names reported in TickResult.Cycles.
const (
	CycleFeedback   = "feedback"
	CycleElection   = "election"
	CycleTaxes      = "taxes"
	CycleReview     = "review"
	CycleWorldEvent = "world_event"
)

// Schedule defines when each periodic system runs relative to the tick counter.
// A zero period disables the system.
type Schedule struct {
	FeedbackEvery      uint64 `yaml:"feedback_every"`
	ElectionEvery      uint64 `yaml:"election_every"`
	TaxEvery           uint64 `yaml:"tax_every"`
	ReviewEvery        uint64 `yaml:"review_every"`
	WorldEventEvery    uint64 `yaml:"world_event_every"`
	WorldEventEndEvery uint64 `yaml:"world_event_end_every"`
	ReportEvery        uint64 `yaml:"report_every"`
}

// DefaultSchedule returns the canonical periods.
func DefaultSchedule() Schedule {
	return Schedule{
		FeedbackEvery:      5,
		ElectionEvery:      50,
		TaxEvery:           10,
		ReviewEvery:        25,
		WorldEventEvery:    40,
		WorldEventEndEvery: 20,
		ReportEvery:        50,
	}
}

func due(tick, every uint64) bool {
	return every > 0 && tick%every == 0
}

// Clock advances a simulation on a fixed interval while its run flag is set.
type Clock struct {
	sim      *Simulation
	interval time.Duration
}

// NewClock creates a clock for sim.
func NewClock(sim *Simulation, interval time.Duration) *Clock {
	return &Clock{sim: sim, interval: interval}
}

// Run ticks until ctx is cancelled. Ticks are skipped while the simulation is
// stopped.
func (c *Clock) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	slog.Info("simulation clock started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation clock stopped", "tick", c.sim.Tick())
			return
		case <-ticker.C:
			if c.sim.Running() {
				c.sim.Advance(ctx)
			}
		}
	}
}
