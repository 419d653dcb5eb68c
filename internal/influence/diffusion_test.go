package influence

import (
	"math"
	"testing"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/world"
)

func citizen(id string, x, trust, education float64, ideology [2]float64) *agents.Agent {
	return &agents.Agent{
		ID:         agents.AgentID(id),
		Kind:       agents.KindCitizen,
		TrustScore: trust,
		Position:   world.Point{X: x},
		Citizen:    &agents.Citizen{Education: education, Ideology: ideology},
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		a, b [2]float64
		want float64
	}{
		{[2]float64{1, 0}, [2]float64{1, 0}, 1},
		{[2]float64{1, 0}, [2]float64{-1, 0}, -1},
		{[2]float64{1, 0}, [2]float64{0, 1}, 0},
		{[2]float64{0, 0}, [2]float64{0.5, 0.5}, 0},
	}
	for _, tt := range tests {
		if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWeight(t *testing.T) {
	s := NewService()
	// Opposed ideologies fall back to 0.5.
	if got := s.Weight(-1, 0.5, 0.4); math.Abs(got-0.1*0.5*0.5/0.5) > 1e-12 {
		t.Errorf("opposed weight = %v", got)
	}
	if got := s.Weight(0.8, 0.9, 0.9); math.Abs(got-0.1*0.8*0.9/1.0) > 1e-12 {
		t.Errorf("similar weight = %v", got)
	}
	// An educated source speaking to an uneducated target saturates at 1.
	s.BaseRate = 1
	if got := s.Weight(1, 1, 0); got != 1 {
		t.Errorf("weight = %v, want clamped to 1", got)
	}
}

func TestPropagateMovesTrustAndIdeology(t *testing.T) {
	s := NewService()
	a := citizen("a", 0, 80, 0.5, [2]float64{1, 0})
	b := citizen("b", 10, 40, 0.4, [2]float64{0.6, 0.8})
	far := citizen("far", 500, 0, 1, [2]float64{1, 0})
	leader := &agents.Agent{ID: "l", Kind: agents.KindLeader, TrustScore: 0, Leader: &agents.Leader{}}

	pairs := s.Propagate([]*agents.Agent{a, b, far, leader})
	if pairs != 2 {
		t.Fatalf("pairs = %d, want 2", pairs)
	}
	if far.TrustScore != 0 {
		t.Errorf("out-of-range citizen changed: %v", far.TrustScore)
	}

	// a is updated first (pulled down toward b), then b toward the new a.
	wa := 0.1 * 0.6 * 0.4 / 0.6
	trustA := 80 + (40-80)*wa
	wb := 0.1 * CosineSimilarity(a.Citizen.Ideology, [2]float64{0.6, 0.8}) * 0.5 / 0.5
	trustB := 40 + (trustA-40)*wb
	if math.Abs(a.TrustScore-trustA) > 1e-9 {
		t.Errorf("a trust = %v, want %v", a.TrustScore, trustA)
	}
	if math.Abs(b.TrustScore-trustB) > 1e-9 {
		t.Errorf("b trust = %v, want %v", b.TrustScore, trustB)
	}
	if b.Citizen.Ideology[1] >= 0.8 || b.Citizen.Ideology[0] <= 0.6 {
		t.Errorf("b ideology did not move toward a: %v", b.Citizen.Ideology)
	}
}

func TestPropagateOpposedIdeologyKeepsIdeology(t *testing.T) {
	s := NewService()
	a := citizen("a", 0, 90, 0.5, [2]float64{1, 0})
	b := citizen("b", 5, 10, 0.5, [2]float64{-1, 0})
	s.Propagate([]*agents.Agent{a, b})

	if a.Citizen.Ideology != [2]float64{1, 0} || b.Citizen.Ideology != [2]float64{-1, 0} {
		t.Errorf("opposed ideologies moved: %v %v", a.Citizen.Ideology, b.Citizen.Ideology)
	}
	if a.TrustScore >= 90 || b.TrustScore <= 10 {
		t.Errorf("trust should still converge: a=%v b=%v", a.TrustScore, b.TrustScore)
	}
}

func TestPropagateDecaysTrustInRange(t *testing.T) {
	s := NewService()
	lonely := citizen("x", 0, 100, 0.5, [2]float64{0.2, 0.2})
	lonely.Citizen.MemoryDecay = 0.05
	s.Propagate([]*agents.Agent{lonely})

	want := 100 * (1 - 0.05*0.1)
	if math.Abs(lonely.TrustScore-want) > 1e-9 {
		t.Fatalf("trust = %v, want %v", lonely.TrustScore, want)
	}
}
