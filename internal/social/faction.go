// Factions: citizen blocs sharing a label, summarized each snapshot.
package social

import (
	"sort"

	"github.com/talgya/sworm/internal/agents"
)

// FactionSummary aggregates the citizens of one faction.
type FactionSummary struct {
	Name       string     `json:"name"`
	Members    int        `json:"members"`
	AvgLoyalty float64    `json:"avg_loyalty"`
	AvgTrust   float64    `json:"avg_trust"`
	AvgWealth  float64    `json:"avg_wealth"`
	Ideology   [2]float64 `json:"ideology"` // Mean economic, social position
}

// SummarizeFactions groups citizens by faction, sorted by descending
// membership then name. Non-citizens are ignored.
func SummarizeFactions(population []*agents.Agent) []FactionSummary {
	byName := make(map[string]*FactionSummary)
	var order []string
	for _, a := range population {
		c := a.Citizen
		if c == nil {
			continue
		}
		f, ok := byName[c.Faction]
		if !ok {
			f = &FactionSummary{Name: c.Faction}
			byName[c.Faction] = f
			order = append(order, c.Faction)
		}
		f.Members++
		f.AvgLoyalty += c.FactionLoyalty
		f.AvgTrust += a.TrustScore
		f.AvgWealth += c.Wealth
		f.Ideology[0] += c.Ideology[0]
		f.Ideology[1] += c.Ideology[1]
	}

	out := make([]FactionSummary, 0, len(order))
	for _, name := range order {
		f := byName[name]
		n := float64(f.Members)
		f.AvgLoyalty /= n
		f.AvgTrust /= n
		f.AvgWealth /= n
		f.Ideology[0] /= n
		f.Ideology[1] /= n
		out = append(out, *f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Members != out[j].Members {
			return out[i].Members > out[j].Members
		}
		return out[i].Name < out[j].Name
	})
	return out
}
