// Package narrative turns simulation state into text: citizen feedback lines
// during ticks and an optional LLM-written chronicle for readers.
package narrative

import (
	"math/rand"
	"strings"
)

var complaintTemplates = []string{
	"I can barely afford bread while {leader_name} lives like a king!",
	"Corruption is rampant in {state_name}. The taxes are crushing us.",
	"Why is my neighbor getting more funds than me? This system is rigged.",
	"I miss the old days before the Sworm took over.",
	"Does the Supreme Leader even know what's happening here?",
}

var propagandaTemplates = []string{
	"Under the wise guidance of {leader_name}, our state has reached new heights!",
	"Stability is our greatest treasure. Do not listen to the dissenters.",
	"The budget is lean because we are building a better future.",
	"Obey, work, and you shall be rewarded. The Sworm is eternal.",
	"Enemies of the system are enemies of the people.",
}

// Feedback produces one-line public reactions to a leader. Template choice is
// drawn from the simulation RNG.
type Feedback struct {
	rng *rand.Rand
}

// NewFeedback creates a feedback generator drawing from rng.
func NewFeedback(rng *rand.Rand) *Feedback {
	return &Feedback{rng: rng}
}

// Generate returns a propaganda line when the leader ran propaganda, a
// grievance otherwise.
func (f *Feedback) Generate(leaderName, stateName string, propaganda bool) string {
	if leaderName == "" {
		leaderName = "the Leader"
	}
	if stateName == "" {
		stateName = "our home"
	}
	templates := complaintTemplates
	if propaganda {
		templates = propagandaTemplates
	}
	msg := templates[f.rng.Intn(len(templates))]
	return strings.NewReplacer("{leader_name}", leaderName, "{state_name}", stateName).Replace(msg)
}
