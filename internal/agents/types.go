// Package agents provides the agent data model and population synthesis.
// An Agent is a tagged union: shared fields plus exactly one variant payload
// selected by Kind.
package agents

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/talgya/sworm/internal/world"
)

// AgentID is a unique identifier for an agent (UUID string).
type AgentID string

// Short returns the first four characters of the id, used in display names.
func (id AgentID) Short() string {
	if len(id) < 4 {
		return string(id)
	}
	return string(id[:4])
}

// StateID identifies a state of the nation.
type StateID string

// Kind is the variant tag of an agent.
type Kind uint8

const (
	KindCitizen Kind = iota
	KindLeader
	KindSupremeLeader
	KindMedia
	KindExternal
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCitizen:
		return "citizen"
	case KindLeader:
		return "leader"
	case KindSupremeLeader:
		return "supreme_leader"
	case KindMedia:
		return "media"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind serialize as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a wire name produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindCitizen; c <= KindExternal; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown agent kind %q", b)
}

// NoAction marks an agent that has not chosen an action yet.
const NoAction = -1

// Agent is a member of the simulated society.
type Agent struct {
	ID   AgentID `json:"id"`
	Kind Kind    `json:"type"`

	// Fixed at creation, each in [0,1].
	Honesty    float64 `json:"honesty"`
	Greed      float64 `json:"greed"`
	Competence float64 `json:"competence"`

	TrustScore float64     `json:"trust_score"` // Nominally 0–100
	Position   world.Point `json:"position"`

	// Probability of overriding the policy with a uniformly random action.
	CognitiveBias   float64 `json:"cognitive_bias"`
	MoralResistance float64 `json:"moral_resistance"`

	// Learning memory: the state vector and action of the last decision.
	LastAction int       `json:"last_action"`
	LastState  []float64 `json:"-"`

	Citizen       *Citizen       `json:"citizen,omitempty"`
	Leader        *Leader        `json:"leader,omitempty"`
	SupremeLeader *SupremeLeader `json:"supreme_leader,omitempty"`
	Media         *Media         `json:"media,omitempty"`
	External      *External      `json:"external,omitempty"`
}

// Citizen is the payload of KindCitizen.
type Citizen struct {
	Wealth         float64    `json:"wealth"`
	Happiness      float64    `json:"happiness"` // Nominally 0–100
	StateID        StateID    `json:"state_id"`
	Faction        string     `json:"faction"`
	FactionLoyalty float64    `json:"faction_loyalty"`
	Age            int        `json:"age"`      // Ticks
	Lifespan       int        `json:"lifespan"` // Ticks
	Education      float64    `json:"education"`
	Ideology       [2]float64 `json:"ideology"` // Economic, social axes in [-1,1]
	MemoryDecay    float64    `json:"memory_decay"`
	Hope           float64    `json:"hope"` // Chance an economic risk pays off
}

// Leader is the payload of KindLeader.
type Leader struct {
	StateID          StateID `json:"state_id"`
	BudgetAllocated  float64 `json:"budget_allocated"`
	Wealth           float64 `json:"wealth"` // Personal
	CorruptionLevel  float64 `json:"corruption_level"`
	PerformanceScore float64 `json:"performance_score"`
	RecentFeedback   string  `json:"recent_feedback,omitempty"`
}

// SupremeLeader is the payload of KindSupremeLeader.
type SupremeLeader struct {
	TotalBudget     float64 `json:"total_budget"`
	TenureRemaining int     `json:"tenure_remaining"`
}

// Media is the payload of KindMedia.
type Media struct {
	Credibility              float64 `json:"credibility"`
	Bias                     float64 `json:"bias"` // -1 anti-establishment … +1 pro-establishment
	Reach                    float64 `json:"reach"`
	Ownership                string  `json:"ownership"`
	DisinformationRate       float64 `json:"disinformation_rate"`
	AlgorithmicAmplification float64 `json:"algorithmic_amplification"`
}

// External is the payload of KindExternal (the "world" actor).
type External struct {
	ActiveEvent   string  `json:"active_event,omitempty"`
	EventSeverity float64 `json:"event_severity"`
}

// Wealth returns the agent's wealth: citizen holdings or a leader's personal wealth.
func (a *Agent) Wealth() float64 {
	switch {
	case a.Citizen != nil:
		return a.Citizen.Wealth
	case a.Leader != nil:
		return a.Leader.Wealth
	}
	return 0
}

// Happiness returns the citizen's happiness, or 0 for other variants.
func (a *Agent) Happiness() float64 {
	if a.Citizen != nil {
		return a.Citizen.Happiness
	}
	return 0
}

// Budget returns a leader's allocated budget or the supreme leader's total budget.
func (a *Agent) Budget() float64 {
	switch {
	case a.Leader != nil:
		return a.Leader.BudgetAllocated
	case a.SupremeLeader != nil:
		return a.SupremeLeader.TotalBudget
	}
	return 0
}

// StateID returns the agent's state affiliation, if any.
func (a *Agent) StateID() StateID {
	switch {
	case a.Citizen != nil:
		return a.Citizen.StateID
	case a.Leader != nil:
		return a.Leader.StateID
	}
	return ""
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	c := *a
	if a.LastState != nil {
		c.LastState = append([]float64(nil), a.LastState...)
	}
	if a.Citizen != nil {
		v := *a.Citizen
		c.Citizen = &v
	}
	if a.Leader != nil {
		v := *a.Leader
		c.Leader = &v
	}
	if a.SupremeLeader != nil {
		v := *a.SupremeLeader
		c.SupremeLeader = &v
	}
	if a.Media != nil {
		v := *a.Media
		c.Media = &v
	}
	if a.External != nil {
		v := *a.External
		c.External = &v
	}
	return &c
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampScore bounds a trust or happiness value to [0,100].
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}
