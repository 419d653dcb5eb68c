package engine

import (
	"math"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/policy"
)

// Rate feedback constants.
const (
	inflationDrift    = 0.0005
	inflationGain     = 0.001
	inflationFloor    = 0.01
	unemploymentGain  = 0.1
	unemploymentDrift = 0.001
	unemploymentFloor = 0.02
)

// Metrics are the global indicators reported every tick.
type Metrics struct {
	Population   int     `json:"population"`
	AvgHappiness float64 `json:"avg_happiness"`
	AvgWealth    float64 `json:"avg_wealth"`
	AvgTrust     float64 `json:"avg_trust"`
	Inflation    float64 `json:"inflation"`
	Unemployment float64 `json:"unemployment"`
	Inequality   float64 `json:"inequality"`
	SLBudget     float64 `json:"sl_budget"`
}

// Inequality returns the coefficient of variation of citizen wealth:
// population standard deviation over (mean + 0.1). Zero without citizens.
func Inequality(population []*agents.Agent) float64 {
	var sum float64
	n := 0
	for _, a := range population {
		if a.Citizen != nil {
			sum += a.Citizen.Wealth
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	var sq float64
	for _, a := range population {
		if a.Citizen != nil {
			d := a.Citizen.Wealth - mean
			sq += d * d
		}
	}
	return math.Sqrt(sq/float64(n)) / (mean + 0.1)
}

// NextRates applies the inequality feedback to the macro-economic rates.
func NextRates(inflation, unemployment, inequality float64) (float64, float64) {
	inflation += inequality*inflationGain - inflationDrift
	if inflation < inflationFloor {
		inflation = inflationFloor
	}
	unemployment += inflation*unemploymentGain - unemploymentDrift
	if unemployment < unemploymentFloor {
		unemployment = unemploymentFloor
	}
	return inflation, unemployment
}

// StateVector builds the normalized policy input for an agent.
func StateVector(a *agents.Agent, inflation, unemployment, inequality float64) []float64 {
	v := make([]float64, policy.StateSize)
	v[policy.StateTrust] = a.TrustScore / 100
	v[policy.StateWealth] = math.Min(1, a.Wealth()/1000)
	v[policy.StateHappiness] = math.Min(1, a.Happiness()/100)
	v[policy.StateBudget] = math.Min(1, a.Budget()/1000)
	v[policy.StateInflation] = inflation
	v[policy.StateUnemployment] = unemployment
	v[policy.StateInequality] = math.Min(1, inequality)
	return v
}

// computeMetrics aggregates the live citizen population.
func (s *Simulation) computeMetrics() Metrics {
	m := Metrics{
		Inflation:    s.inflation,
		Unemployment: s.unemployment,
		Inequality:   Inequality(s.agents),
	}
	for _, a := range s.agents {
		if a.Citizen == nil {
			continue
		}
		m.Population++
		m.AvgHappiness += a.Citizen.Happiness
		m.AvgWealth += a.Citizen.Wealth
		m.AvgTrust += a.TrustScore
	}
	if m.Population > 0 {
		n := float64(m.Population)
		m.AvgHappiness /= n
		m.AvgWealth /= n
		m.AvgTrust /= n
	}
	if sl := s.supremeLeader(); sl != nil {
		m.SLBudget = sl.SupremeLeader.TotalBudget
	}
	return m
}

// refreshStates recomputes every state's population and indices.
func (s *Simulation) refreshStates() {
	byState := s.citizensByState()
	for _, st := range s.nation.States {
		citizens := byState[st.ID]
		st.Population = len(citizens)
		st.EconomyIndex, st.TrustIndex = 0, 0
		if len(citizens) == 0 {
			continue
		}
		for _, c := range citizens {
			st.EconomyIndex += c.Citizen.Wealth
			st.TrustIndex += c.TrustScore
		}
		st.EconomyIndex /= float64(len(citizens))
		st.TrustIndex /= float64(len(citizens))
	}
}
