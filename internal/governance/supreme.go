package governance

import (
	"strings"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/social"
)

// TaxRate is the supreme leader's levy on state leaders' personal wealth.
const TaxRate = 0.10

// Dismissal thresholds.
const (
	MinTrust       = 20.0
	MaxCorruption  = 75.0
	MinPerformance = 30.0
)

// Dismissal reasons.
const (
	ReasonLowTrust        = "Low Trust"
	ReasonHighCorruption  = "High Corruption"
	ReasonPoorPerformance = "Poor Performance"
)

// Roster resolves agent ids against the live population.
type Roster interface {
	Agent(id agents.AgentID) (*agents.Agent, bool)
}

// Dismissal describes a leader the supreme leader removed and its replacement.
type Dismissal struct {
	StateID agents.StateID `json:"state_id"`
	OldID   agents.AgentID `json:"old_id"`
	New     *agents.Agent  `json:"-"`
	Reasons []string       `json:"reasons"`
}

// NewID returns the replacement's id.
func (d Dismissal) NewID() agents.AgentID { return d.New.ID }

// Reason joins the reasons for a news entry.
func (d Dismissal) Reason() string { return strings.Join(d.Reasons, ", ") }

// SupremeLeaderService taxes and reviews state leaders.
type SupremeLeaderService struct {
	factory LeaderFactory
}

// NewSupremeLeaderService creates the service; replacements come from factory,
// the same constructor elections use.
func NewSupremeLeaderService(factory LeaderFactory) *SupremeLeaderService {
	return &SupremeLeaderService{factory: factory}
}

// CollectTaxes moves TaxRate of each leader's personal wealth into the supreme
// leader's budget and returns the amount collected.
func (s *SupremeLeaderService) CollectTaxes(supreme *agents.Agent, leaders []*agents.Agent) float64 {
	collected := 0.0
	for _, l := range leaders {
		if l.Leader == nil {
			continue
		}
		tax := l.Leader.Wealth * TaxRate
		l.Leader.Wealth -= tax
		collected += tax
	}
	if supreme != nil && supreme.SupremeLeader != nil {
		supreme.SupremeLeader.TotalBudget += collected
	}
	return collected
}

// DismissalReasons returns every criterion the leader fails, in fixed order.
func DismissalReasons(leader *agents.Agent) []string {
	var reasons []string
	if leader.TrustScore < MinTrust {
		reasons = append(reasons, ReasonLowTrust)
	}
	if leader.Leader != nil {
		if leader.Leader.CorruptionLevel > MaxCorruption {
			reasons = append(reasons, ReasonHighCorruption)
		}
		if leader.Leader.PerformanceScore < MinPerformance {
			reasons = append(reasons, ReasonPoorPerformance)
		}
	}
	return reasons
}

// EvaluateLeaders reviews every state's leader and builds a replacement for
// each one that fails any criterion. States whose leader is missing from the
// roster are skipped. The caller applies the replacements.
func (s *SupremeLeaderService) EvaluateLeaders(states []*social.State, roster Roster) []Dismissal {
	var out []Dismissal
	for _, st := range states {
		leader, ok := roster.Agent(st.LeaderID)
		if !ok {
			continue
		}
		reasons := DismissalReasons(leader)
		if len(reasons) == 0 {
			continue
		}
		out = append(out, Dismissal{
			StateID: st.ID,
			OldID:   leader.ID,
			New:     s.factory.NewLeader(st.ID),
			Reasons: reasons,
		})
	}
	return out
}
