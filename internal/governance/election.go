// Package governance decides who leads each state: contested elections and
// the supreme leader's taxation and dismissal reviews.
package governance

import (
	"math/rand"

	"github.com/talgya/sworm/internal/agents"
)

// Election parameters.
const (
	ChallengerBaseline = 50.0
	ChallengerNoise    = 10.0
	PerceptionNoise    = 5.0

	// TerminalReward is applied to the incumbent's last transition: positive
	// on re-election, negative on defeat.
	TerminalReward = 100.0
)

// LeaderFactory builds a replacement leader for a state.
// *agents.Spawner satisfies it.
type LeaderFactory interface {
	NewLeader(stateID agents.StateID) *agents.Agent
}

// ElectionResult is the outcome of one state's election.
type ElectionResult struct {
	StateID         agents.StateID `json:"state_id"`
	IncumbentID     agents.AgentID `json:"incumbent_id"`
	ChallengerScore float64        `json:"challenger_score"`
	IncumbentVotes  int            `json:"incumbent_votes"`
	ChallengerVotes int            `json:"challenger_votes"`
	IncumbentWon    bool           `json:"incumbent_won"`

	// NewLeader is the replacement when the challenger won; nil otherwise.
	NewLeader *agents.Agent `json:"-"`
}

// TotalVotes returns the number of ballots cast.
func (r ElectionResult) TotalVotes() int { return r.IncumbentVotes + r.ChallengerVotes }

// TerminalReward returns the reward for the incumbent's final transition.
func (r ElectionResult) TerminalReward() float64 {
	if r.IncumbentWon {
		return TerminalReward
	}
	return -TerminalReward
}

// ElectionService runs per-state contests against a synthetic challenger.
type ElectionService struct {
	rng     *rand.Rand
	factory LeaderFactory
}

// NewElectionService creates an election service drawing from rng.
func NewElectionService(rng *rand.Rand, factory LeaderFactory) *ElectionService {
	return &ElectionService{rng: rng, factory: factory}
}

// Conduct runs the election for one state. The challenger's score is drawn
// once; each citizen then compares a noisy perception of the incumbent's trust
// against it. A state without citizens keeps its incumbent.
func (e *ElectionService) Conduct(stateID agents.StateID, incumbent *agents.Agent, citizens []*agents.Agent) ElectionResult {
	res := ElectionResult{StateID: stateID, IncumbentID: incumbent.ID, IncumbentWon: true}
	if len(citizens) == 0 {
		return res
	}

	res.ChallengerScore = ChallengerBaseline + e.uniform(-ChallengerNoise, ChallengerNoise)
	for range citizens {
		perceived := incumbent.TrustScore + e.uniform(-PerceptionNoise, PerceptionNoise)
		if perceived >= res.ChallengerScore {
			res.IncumbentVotes++
		} else {
			res.ChallengerVotes++
		}
	}

	res.IncumbentWon = IncumbentWins(res.IncumbentVotes, res.ChallengerVotes)
	if !res.IncumbentWon {
		res.NewLeader = e.factory.NewLeader(stateID)
	}
	return res
}

// IncumbentWins reports the election winner; the incumbent keeps ties.
func IncumbentWins(incumbentVotes, challengerVotes int) bool {
	return incumbentVotes >= challengerVotes
}

func (e *ElectionService) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}
