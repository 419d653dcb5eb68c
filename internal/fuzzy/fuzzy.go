// Package fuzzy implements a small Mamdani inference system: triangular
// membership functions, min-AND rule activation, max aggregation and
// centroid defuzzification over a sampled output universe.
package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoActivation is returned when no rule fires for the given inputs.
var ErrNoActivation = errors.New("fuzzy: no rule activated")

// Triangle is a triangular membership function with feet A and C and peak B.
// A == B or B == C gives a shoulder.
type Triangle struct {
	A, B, C float64
}

// Degree returns the membership of x in [0,1].
func (t Triangle) Degree(x float64) float64 {
	switch {
	case x == t.B:
		return 1
	case x < t.A || x > t.C:
		return 0
	case x < t.B:
		return (x - t.A) / (t.B - t.A)
	default:
		return (t.C - x) / (t.C - t.B)
	}
}

// Variable is a linguistic variable over [Min, Max].
type Variable struct {
	Name  string
	Min   float64
	Max   float64
	Terms map[string]Triangle
}

// Degree returns the membership of x (clipped to the universe) in term.
func (v Variable) Degree(term string, x float64) (float64, error) {
	t, ok := v.Terms[term]
	if !ok {
		return 0, fmt.Errorf("fuzzy: variable %q has no term %q", v.Name, term)
	}
	return t.Degree(math.Max(v.Min, math.Min(v.Max, x))), nil
}

// Clause is one antecedent: Variable IS Term.
type Clause struct {
	Variable string
	Term     string
}

// Rule fires Output term with the minimum degree of its antecedents.
type Rule struct {
	If   []Clause
	Then string
}

// System is a rule base over named inputs and a single output.
type System struct {
	Inputs  map[string]Variable
	Output  Variable
	Rules   []Rule
	Samples int // Output universe resolution for the centroid
}

// Infer evaluates the rule base and returns the crisp centroid output.
func (s *System) Infer(inputs map[string]float64) (float64, error) {
	activations := make(map[string]float64, len(s.Output.Terms))
	for i, r := range s.Rules {
		strength := 1.0
		for _, c := range r.If {
			v, ok := s.Inputs[c.Variable]
			if !ok {
				return 0, fmt.Errorf("fuzzy: rule %d references unknown input %q", i, c.Variable)
			}
			x, ok := inputs[c.Variable]
			if !ok {
				return 0, fmt.Errorf("fuzzy: missing input %q", c.Variable)
			}
			if math.IsNaN(x) {
				return 0, fmt.Errorf("fuzzy: input %q is NaN", c.Variable)
			}
			d, err := v.Degree(c.Term, x)
			if err != nil {
				return 0, err
			}
			strength = math.Min(strength, d)
		}
		if _, ok := s.Output.Terms[r.Then]; !ok {
			return 0, fmt.Errorf("fuzzy: rule %d has unknown output term %q", i, r.Then)
		}
		activations[r.Then] = math.Max(activations[r.Then], strength)
	}

	samples := s.Samples
	if samples < 2 {
		samples = 101
	}
	step := (s.Output.Max - s.Output.Min) / float64(samples-1)

	var num, den float64
	for i := 0; i < samples; i++ {
		x := s.Output.Min + float64(i)*step
		mu := 0.0
		for term, act := range activations {
			clipped := math.Min(act, s.Output.Terms[term].Degree(x))
			mu = math.Max(mu, clipped)
		}
		num += x * mu
		den += mu
	}
	if den == 0 {
		return 0, ErrNoActivation
	}
	return num / den, nil
}
