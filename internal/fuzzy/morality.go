package fuzzy

import "log/slog"

// DefaultResistance is returned whenever inference fails.
const DefaultResistance = 0.5

// MoralityService maps (greed, trust, pressure) to a moral resistance in [0,1].
// It is stateless and safe to share.
type MoralityService struct {
	system *System
}

// NewMoralityService builds the moral-resistance rule base.
func NewMoralityService() *MoralityService {
	levels := map[string]Triangle{
		"low":  {0, 0, 0.4},
		"med":  {0.3, 0.5, 0.7},
		"high": {0.6, 1, 1},
	}
	return &MoralityService{system: &System{
		Inputs: map[string]Variable{
			"greed": {Name: "greed", Min: 0, Max: 1, Terms: map[string]Triangle{
				"low":  {0, 0, 0.5},
				"med":  {0.2, 0.5, 0.8},
				"high": {0.5, 1, 1},
			}},
			"trust": {Name: "trust", Min: 0, Max: 100, Terms: map[string]Triangle{
				"low":  {0, 0, 40},
				"med":  {30, 50, 70},
				"high": {60, 100, 100},
			}},
			"pressure": {Name: "pressure", Min: 0, Max: 1, Terms: map[string]Triangle{
				"low":  {0, 0, 0.4},
				"high": {0.4, 1, 1},
			}},
		},
		Output: Variable{Name: "moral_resistance", Min: 0, Max: 1, Terms: levels},
		Rules: []Rule{
			{If: []Clause{{"greed", "high"}, {"trust", "low"}}, Then: "low"},
			{If: []Clause{{"greed", "low"}, {"trust", "high"}}, Then: "high"},
			{If: []Clause{{"pressure", "high"}, {"trust", "low"}}, Then: "med"},
			{If: []Clause{{"greed", "med"}}, Then: "med"},
		},
		Samples: 101,
	}}
}

// Infer returns the moral resistance or the inference error.
func (m *MoralityService) Infer(greed, trust, pressure float64) (float64, error) {
	return m.system.Infer(map[string]float64{
		"greed":    greed,
		"trust":    trust,
		"pressure": pressure,
	})
}

// MoralResistance returns the moral resistance, falling back to 0.5 on any failure.
func (m *MoralityService) MoralResistance(greed, trust, pressure float64) float64 {
	v, err := m.Infer(greed, trust, pressure)
	if err != nil {
		slog.Debug("moral inference fell back to default", "error", err,
			"greed", greed, "trust", trust, "pressure", pressure)
		return DefaultResistance
	}
	return v
}
