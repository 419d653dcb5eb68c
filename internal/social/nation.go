// Package social provides the nation/state tree and the public news feed.
package social

import (
	"github.com/talgya/sworm/internal/agents"
)

// State is one region of the nation, governed by a single leader.
type State struct {
	ID         agents.StateID `json:"id"`
	Name       string         `json:"name"`
	Population int            `json:"population"`
	LeaderID   agents.AgentID `json:"leader_id"`

	// Indices refreshed at the end of every tick.
	EconomyIndex float64 `json:"economy_index"` // Mean citizen wealth
	TrustIndex   float64 `json:"trust_index"`   // Mean citizen trust
	Budget       float64 `json:"budget"`        // Last allocation to the leader
}

// Nation is the root of the political tree.
type Nation struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	States          []*State       `json:"states"`
	SupremeLeaderID agents.AgentID `json:"supreme_leader_id"`
}

// State returns the state with the given id, or nil.
func (n *Nation) State(id agents.StateID) *State {
	for _, s := range n.States {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Clone returns a deep copy of the nation.
func (n *Nation) Clone() *Nation {
	c := *n
	c.States = make([]*State, len(n.States))
	for i, s := range n.States {
		v := *s
		c.States[i] = &v
	}
	return &c
}
