// Agent spawning: create the initial population from trait distributions,
// replacement leaders, and descendants for generational turnover.
package agents

import (
	"math/rand"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/sworm/internal/world"
)

// Distribution names a sampling shape for population traits.
type Distribution string

const (
	DistNormal     Distribution = "normal"      // N(0.5, 0.2) clipped to [0,1]
	DistSkewedLow  Distribution = "skewed_low"  // Beta(2,5)
	DistSkewedHigh Distribution = "skewed_high" // Beta(5,2)
	DistUniform    Distribution = "uniform"
)

// Faction labels and their relative weights (1 industrialist per 20 others).
var (
	factionNames   = []string{"Industrialist", "Environmentalist", "Technocrat", "Neutral"}
	factionWeights = []int{1, 7, 7, 6}
)

const (
	defaultMediaReach = 150.0
	citizenMaxBias    = 0.1
	leaderBias        = 0.05
	supremeBias       = 0.02
	mediaBias         = 0.05
	supremeTenure     = 10
)

// SpawnConfig controls trait distributions for generated citizens.
type SpawnConfig struct {
	Education Distribution
	Ideology  Distribution
}

// DefaultSpawnConfig returns the canonical (normal) distributions.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{Education: DistNormal, Ideology: DistNormal}
}

// Spawner creates agents for the simulation. It draws every random value,
// ids included, from the shared simulation RNG so a fixed seed reproduces
// the same population.
type Spawner struct {
	rng    *rand.Rand
	layout *world.Layout
	cfg    SpawnConfig
}

// NewSpawner creates an agent spawner drawing from rng and placing agents on layout.
func NewSpawner(rng *rand.Rand, layout *world.Layout, cfg SpawnConfig) *Spawner {
	return &Spawner{rng: rng, layout: layout, cfg: cfg}
}

// NewID returns a fresh UUID drawn from the spawner's RNG.
func (s *Spawner) NewID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// *rand.Rand never fails to read; keep a valid id regardless.
		return uuid.NewString()
	}
	return id.String()
}

// SpawnCitizens creates count citizens for a state placed in the given layout region.
func (s *Spawner) SpawnCitizens(stateID StateID, region, count int) []*Agent {
	education := s.Sample(s.cfg.Education, count)
	ideoEco := s.Sample(s.cfg.Ideology, count)
	ideoSoc := s.Sample(s.cfg.Ideology, count)

	citizens := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		a := &Agent{
			ID:            AgentID(s.NewID()),
			Kind:          KindCitizen,
			Honesty:       s.rng.Float64(),
			Greed:         s.rng.Float64(),
			Competence:    s.rng.Float64(),
			TrustScore:    50,
			Position:      s.layout.InRegion(s.rng, region),
			CognitiveBias: s.rng.Float64() * citizenMaxBias,
			LastAction:    NoAction,
			Citizen: &Citizen{
				Wealth:         s.uniform(5, 15),
				Happiness:      s.uniform(40, 60),
				StateID:        stateID,
				Faction:        s.faction(),
				FactionLoyalty: s.uniform(30, 70),
				Age:            s.rng.Intn(81),
				Lifespan:       80 + s.rng.Intn(41),
				Education:      education[i],
				Ideology:       [2]float64{ideoEco[i]*2 - 1, ideoSoc[i]*2 - 1},
				MemoryDecay:    s.uniform(0.01, 0.05),
				Hope:           s.uniform(0.3, 0.7),
			},
		}
		citizens = append(citizens, a)
	}
	return citizens
}

// NewLeader creates a state leader with fresh random traits and neutral trust.
// Used at world creation and for every replacement (election defeat or dismissal).
func (s *Spawner) NewLeader(stateID StateID) *Agent {
	return &Agent{
		ID:            AgentID(s.NewID()),
		Kind:          KindLeader,
		Honesty:       s.rng.Float64(),
		Greed:         s.rng.Float64(),
		Competence:    s.rng.Float64(),
		TrustScore:    50,
		Position:      s.layout.Uniform(s.rng),
		CognitiveBias: leaderBias,
		LastAction:    NoAction,
		Leader: &Leader{
			StateID:          stateID,
			PerformanceScore: 50,
		},
	}
}

// NewSupremeLeader creates the nation's supreme leader.
func (s *Spawner) NewSupremeLeader() *Agent {
	return &Agent{
		ID:            AgentID(s.NewID()),
		Kind:          KindSupremeLeader,
		Honesty:       s.rng.Float64(),
		Greed:         s.rng.Float64(),
		Competence:    s.rng.Float64(),
		TrustScore:    50,
		Position:      s.layout.Center(),
		CognitiveBias: supremeBias,
		LastAction:    NoAction,
		SupremeLeader: &SupremeLeader{TenureRemaining: supremeTenure},
	}
}

// SpawnMedia creates count media outlets.
func (s *Spawner) SpawnMedia(count int) []*Agent {
	outlets := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		ownership := "State"
		if s.rng.Float64() < 0.7 {
			ownership = "Corporate"
		}
		outlets = append(outlets, &Agent{
			ID:            AgentID(s.NewID()),
			Kind:          KindMedia,
			Honesty:       s.rng.Float64(),
			Greed:         s.uniform(0.1, 0.4),
			Competence:    s.uniform(0.6, 0.9),
			TrustScore:    50,
			Position:      s.layout.Uniform(s.rng),
			CognitiveBias: mediaBias,
			LastAction:    NoAction,
			Media: &Media{
				Credibility:              s.uniform(0.4, 0.8),
				Bias:                     s.uniform(-0.6, 0.6),
				Reach:                    defaultMediaReach,
				Ownership:                ownership,
				DisinformationRate:       s.uniform(0.01, 0.2),
				AlgorithmicAmplification: s.uniform(1.0, 2.5),
			},
		})
	}
	return outlets
}

// NewExternal creates the world actor at the centre of the plane.
func (s *Spawner) NewExternal() *Agent {
	return &Agent{
		ID:         AgentID(s.NewID()),
		Kind:       KindExternal,
		Honesty:    1,
		Greed:      0,
		Competence: 1,
		TrustScore: 50,
		Position:   s.layout.Center(),
		LastAction: NoAction,
		External:   &External{},
	}
}

// SpawnChild creates the descendant of a citizen reaching the end of its lifespan.
// The child inherits exactly half of the parent's wealth, its state, faction and
// position, and slightly mutated traits.
func (s *Spawner) SpawnChild(parent *Agent) *Agent {
	pc := parent.Citizen
	return &Agent{
		ID:            AgentID(s.NewID()),
		Kind:          KindCitizen,
		Honesty:       Clamp(parent.Honesty+s.uniform(-0.1, 0.1), 0, 1),
		Greed:         Clamp(parent.Greed+s.uniform(-0.1, 0.1), 0, 1),
		Competence:    Clamp(parent.Competence+s.uniform(-0.1, 0.1), 0, 1),
		TrustScore:    50,
		Position:      parent.Position,
		CognitiveBias: parent.CognitiveBias,
		LastAction:    NoAction,
		Citizen: &Citizen{
			Wealth:         pc.Wealth * 0.5,
			Happiness:      50,
			StateID:        pc.StateID,
			Faction:        pc.Faction,
			FactionLoyalty: ClampScore(pc.FactionLoyalty + s.uniform(-10, 10)),
			Age:            0,
			Lifespan:       80 + s.rng.Intn(41),
			Education:      Clamp(pc.Education+s.uniform(-0.05, 0.05), 0, 1),
			Ideology: [2]float64{
				Clamp(pc.Ideology[0]+s.uniform(-0.05, 0.05), -1, 1),
				Clamp(pc.Ideology[1]+s.uniform(-0.05, 0.05), -1, 1),
			},
			MemoryDecay: pc.MemoryDecay,
			Hope:        s.uniform(0.3, 0.7),
		},
	}
}

// Sample draws count values in [0,1] from the named distribution.
func (s *Spawner) Sample(dist Distribution, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		switch dist {
		case DistNormal:
			out[i] = Clamp(0.5+s.rng.NormFloat64()*0.2, 0, 1)
		case DistSkewedLow:
			out[i] = s.beta(2, 5)
		case DistSkewedHigh:
			out[i] = s.beta(5, 2)
		default:
			out[i] = s.rng.Float64()
		}
	}
	return out
}

// beta samples Beta(a,b) from the spawner's RNG.
func (s *Spawner) beta(a, b float64) float64 {
	return distuv.Beta{Alpha: a, Beta: b, Src: s.rng}.Rand()
}

func (s *Spawner) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Spawner) faction() string {
	total := 0
	for _, w := range factionWeights {
		total += w
	}
	r := s.rng.Intn(total)
	for i, w := range factionWeights {
		if r < w {
			return factionNames[i]
		}
		r -= w
	}
	return factionNames[len(factionNames)-1]
}
