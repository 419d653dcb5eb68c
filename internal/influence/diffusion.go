// Package influence diffuses trust and ideology between nearby citizens.
package influence

import (
	"math"

	"github.com/talgya/sworm/internal/agents"
)

// Diffusion parameters.
const (
	DefaultRadius   = 60.0
	DefaultBaseRate = 0.1

	// Weight used when ideologies are orthogonal or opposed.
	dissimilarWeight = 0.5
	ideologyPull     = 0.5
	decayScale       = 0.1
	educationOffset  = 0.1
)

// Service runs pairwise social diffusion. It is deterministic: no randomness
// is drawn.
type Service struct {
	Radius   float64
	BaseRate float64
}

// NewService creates a diffusion service with the default radius and rate.
func NewService() *Service {
	return &Service{Radius: DefaultRadius, BaseRate: DefaultBaseRate}
}

// Propagate lets every citizen be influenced by every other citizen within
// Radius, in population order, then decays its trust by its memory.
// Non-citizens are ignored. It returns the number of influencing pairs.
func (s *Service) Propagate(population []*agents.Agent) int {
	citizens := make([]*agents.Agent, 0, len(population))
	for _, a := range population {
		if a.Citizen != nil {
			citizens = append(citizens, a)
		}
	}

	pairs := 0
	for _, target := range citizens {
		tc := target.Citizen
		for _, source := range citizens {
			if source == target || source.Position.Dist(target.Position) >= s.Radius {
				continue
			}
			sim := CosineSimilarity(source.Citizen.Ideology, tc.Ideology)
			w := s.Weight(sim, source.Citizen.Education, tc.Education)

			target.TrustScore = agents.ClampScore(target.TrustScore + (source.TrustScore-target.TrustScore)*w)
			if sim > 0 {
				for k := range tc.Ideology {
					moved := tc.Ideology[k] + (source.Citizen.Ideology[k]-tc.Ideology[k])*ideologyPull*w
					tc.Ideology[k] = agents.Clamp(moved, -1, 1)
				}
			}
			pairs++
		}
		target.TrustScore = agents.ClampScore(target.TrustScore * (1 - tc.MemoryDecay*decayScale))
	}
	return pairs
}

// Weight returns how strongly a source with educationSource moves a target
// with educationTarget, bounded to [0,1].
func (s *Service) Weight(similarity, educationSource, educationTarget float64) float64 {
	factor := dissimilarWeight
	if similarity > 0 {
		factor = similarity
	}
	w := s.BaseRate * factor * educationSource / (educationTarget + educationOffset)
	return agents.Clamp(w, 0, 1)
}

// CosineSimilarity returns the cosine of the angle between two ideology
// vectors, 0 when either is the zero vector.
func CosineSimilarity(a, b [2]float64) float64 {
	na := math.Hypot(a[0], a[1])
	nb := math.Hypot(b[0], b[1])
	if na == 0 || nb == 0 {
		return 0
	}
	return (a[0]*b[0] + a[1]*b[1]) / (na * nb)
}
