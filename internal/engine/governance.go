// Governance: elections and the supreme leader's review, applied to the population.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/governance"
	"github.com/talgya/sworm/internal/policy"
	"github.com/talgya/sworm/internal/social"
)

// ForceElection runs elections in every state immediately, outside the
// schedule, and returns the per-state results.
func (s *Simulation) ForceElection(ctx context.Context) []governance.ElectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := s.news.Pushed()
	results := s.runElections(s.tick)
	s.refreshStates()
	s.metrics = s.computeMetrics()
	s.persist(ctx, HistoryRecord{Tick: s.tick, Metrics: s.metrics, News: s.news.Since(mark)})
	return results
}

// runElections contests every state. The incumbent's last transition is closed
// with a terminal reward; a defeated incumbent is replaced in place.
func (s *Simulation) runElections(tick uint64) []governance.ElectionResult {
	byState := s.citizensByState()
	var results []governance.ElectionResult

	for _, st := range s.nation.States {
		incumbent, ok := s.index[st.LeaderID]
		if !ok {
			slog.Debug("election skipped: no incumbent", "state", st.Name)
			continue
		}
		res := s.elections.Conduct(st.ID, incumbent, byState[st.ID])
		results = append(results, res)

		if p, ok := s.policies[incumbent.ID]; ok && incumbent.LastState != nil && incumbent.LastAction >= 0 {
			p.Learn(incumbent.LastState, policy.Action(incumbent.LastAction), res.TerminalReward(), incumbent.LastState, true)
		}

		entry := social.NewsEntry{
			Tick:   tick,
			Locale: st.Name,
			Reason: fmt.Sprintf("%d-%d against a challenger polling %.1f", res.IncumbentVotes, res.ChallengerVotes, res.ChallengerScore),
		}
		if res.IncumbentWon {
			entry.Outcome, entry.Actor = "Incumbent Re-elected", "Incumbent"
		} else {
			entry.Outcome, entry.Actor = "Incumbent Defeated", "New Leader"
			s.installLeader(st, incumbent.ID, res.NewLeader)
		}
		s.news.Push(entry)

		slog.Info("election",
			"tick", tick,
			"state", st.Name,
			"outcome", entry.Outcome,
			"incumbent_votes", res.IncumbentVotes,
			"challenger_votes", res.ChallengerVotes,
		)
	}
	return results
}

// reviewLeaders dismisses every leader failing the supreme leader's criteria.
func (s *Simulation) reviewLeaders(tick uint64) {
	for _, d := range s.supreme.EvaluateLeaders(s.nation.States, s.index) {
		st := s.nation.State(d.StateID)
		if st == nil {
			continue
		}
		s.installLeader(st, d.OldID, d.New)
		s.news.Push(social.NewsEntry{
			Tick:    tick,
			Outcome: "Leader Dismissed",
			Actor:   "Appointed Leader",
			Locale:  st.Name,
			Reason:  d.Reason(),
		})
		slog.Warn("leader dismissed",
			"tick", tick,
			"state", st.Name,
			"old", d.OldID.Short(),
			"new", d.NewID().Short(),
			"reasons", d.Reason(),
		)
	}
}

// installLeader replaces a state's leader and rebinds policies.
func (s *Simulation) installLeader(st *social.State, oldID agents.AgentID, leader *agents.Agent) {
	if !s.replace(oldID, leader) {
		s.add(leader)
	}
	st.LeaderID = leader.ID
}
