package agents

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/sworm/internal/world"
)

func newTestSpawner(seed int64) *Spawner {
	layout := world.NewLayout(world.DefaultLayoutConfig())
	return NewSpawner(rand.New(rand.NewSource(seed)), layout, DefaultSpawnConfig())
}

func TestSpawnerIsDeterministic(t *testing.T) {
	a := newTestSpawner(3).SpawnCitizens("s1", 0, 20)
	b := newTestSpawner(3).SpawnCitizens("s1", 0, 20)
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Citizen.Wealth != b[i].Citizen.Wealth || a[i].Position != b[i].Position {
			t.Fatalf("citizen %d differs between identically seeded spawners", i)
		}
	}
	if a[0].ID == a[1].ID {
		t.Fatal("duplicate ids")
	}
}

func TestCitizenRanges(t *testing.T) {
	s := newTestSpawner(5)
	for _, c := range s.SpawnCitizens("s1", 1, 300) {
		if c.Kind != KindCitizen || c.Citizen == nil || c.Leader != nil {
			t.Fatalf("bad variant: %+v", c)
		}
		p := c.Citizen
		switch {
		case p.Wealth < 5 || p.Wealth > 15:
			t.Fatalf("wealth %v", p.Wealth)
		case p.Happiness < 40 || p.Happiness > 60:
			t.Fatalf("happiness %v", p.Happiness)
		case p.Age < 0 || p.Age > 80:
			t.Fatalf("age %d", p.Age)
		case p.Lifespan < 80 || p.Lifespan > 120:
			t.Fatalf("lifespan %d", p.Lifespan)
		case p.Ideology[0] < -1 || p.Ideology[0] > 1 || p.Ideology[1] < -1 || p.Ideology[1] > 1:
			t.Fatalf("ideology %v", p.Ideology)
		case c.CognitiveBias < 0 || c.CognitiveBias > 0.1:
			t.Fatalf("bias %v", c.CognitiveBias)
		case c.TrustScore != 50 || c.LastAction != NoAction:
			t.Fatalf("trust %v last action %d", c.TrustScore, c.LastAction)
		}
	}
}

func TestSampleDistributions(t *testing.T) {
	s := newTestSpawner(11)
	tests := []struct {
		dist Distribution
		mean float64
	}{
		{DistNormal, 0.5},
		{DistSkewedLow, 2.0 / 7},
		{DistSkewedHigh, 5.0 / 7},
		{DistUniform, 0.5},
	}
	for _, tt := range tests {
		vals := s.Sample(tt.dist, 5000)
		sum := 0.0
		for _, v := range vals {
			if v < 0 || v > 1 {
				t.Fatalf("%s sample %v out of [0,1]", tt.dist, v)
			}
			sum += v
		}
		if mean := sum / float64(len(vals)); math.Abs(mean-tt.mean) > 0.03 {
			t.Errorf("%s mean = %.3f, want %.3f", tt.dist, mean, tt.mean)
		}
	}
}

func TestSkewedSamplesAreReproducible(t *testing.T) {
	for _, dist := range []Distribution{DistSkewedLow, DistSkewedHigh} {
		a := newTestSpawner(17).Sample(dist, 50)
		b := newTestSpawner(17).Sample(dist, 50)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%s sample %d: %v vs %v", dist, i, a[i], b[i])
			}
		}
	}

	cfg := SpawnConfig{Education: DistSkewedLow, Ideology: DistSkewedHigh}
	layout := world.NewLayout(world.DefaultLayoutConfig())
	x := NewSpawner(rand.New(rand.NewSource(4)), layout, cfg).SpawnCitizens("s1", 0, 10)
	y := NewSpawner(rand.New(rand.NewSource(4)), layout, cfg).SpawnCitizens("s1", 0, 10)
	for i := range x {
		if x[i].ID != y[i].ID || x[i].Citizen.Education != y[i].Citizen.Education || x[i].Citizen.Ideology != y[i].Citizen.Ideology {
			t.Fatalf("skewed citizen %d differs between identically seeded spawners", i)
		}
	}
}

func TestSpawnChild(t *testing.T) {
	s := newTestSpawner(9)
	parent := s.SpawnCitizens("s2", 1, 1)[0]
	parent.Citizen.Wealth = 30
	child := s.SpawnChild(parent)

	if child.ID == parent.ID {
		t.Fatal("child reuses parent id")
	}
	c := child.Citizen
	if c.Wealth != 15 {
		t.Errorf("child wealth = %v, want 15", c.Wealth)
	}
	if c.StateID != "s2" || c.Faction != parent.Citizen.Faction || child.Position != parent.Position {
		t.Errorf("child did not inherit state/faction/position")
	}
	if c.Age != 0 || c.Happiness != 50 || child.TrustScore != 50 {
		t.Errorf("child age %d happiness %v trust %v", c.Age, c.Happiness, child.TrustScore)
	}
	if math.Abs(child.Honesty-parent.Honesty) > 0.1+1e-9 {
		t.Errorf("honesty drifted %v -> %v", parent.Honesty, child.Honesty)
	}
}

func TestLeaderMediaExternal(t *testing.T) {
	s := newTestSpawner(2)
	l := s.NewLeader("s1")
	if l.Kind != KindLeader || l.Leader.StateID != "s1" || l.Leader.PerformanceScore != 50 || l.StateID() != "s1" {
		t.Errorf("leader = %+v", l.Leader)
	}
	sl := s.NewSupremeLeader()
	if sl.SupremeLeader.TenureRemaining != 10 || sl.Position != (world.Point{X: 400, Y: 300}) {
		t.Errorf("supreme leader = %+v at %+v", sl.SupremeLeader, sl.Position)
	}
	for _, m := range s.SpawnMedia(50) {
		p := m.Media
		if p.Ownership != "State" && p.Ownership != "Corporate" {
			t.Fatalf("ownership %q", p.Ownership)
		}
		if p.Credibility < 0.4 || p.Credibility > 0.8 || p.Reach != 150 ||
			p.AlgorithmicAmplification < 1 || p.AlgorithmicAmplification > 2.5 {
			t.Fatalf("media payload %+v", p)
		}
	}
	ext := s.NewExternal()
	if ext.Honesty != 1 || ext.Greed != 0 || ext.External == nil {
		t.Errorf("external = %+v", ext)
	}
}

func TestKindJSON(t *testing.T) {
	for k := KindCitizen; k <= KindExternal; k++ {
		b, err := json.Marshal(k)
		if err != nil {
			t.Fatal(err)
		}
		var back Kind
		if err := json.Unmarshal(b, &back); err != nil || back != k {
			t.Errorf("%s: round trip gave %v, %v", k, back, err)
		}
	}
	var k Kind
	if err := json.Unmarshal([]byte(`"oligarch"`), &k); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestSpawner(4)
	a := s.SpawnCitizens("s1", 0, 1)[0]
	a.LastState = []float64{1, 2}
	c := a.Clone()
	c.Citizen.Wealth = -1
	c.LastState[0] = 9
	if a.Citizen.Wealth == -1 || a.LastState[0] == 9 {
		t.Fatal("Clone shares payload or state vector")
	}
}

func TestAccessorsAndClamp(t *testing.T) {
	if AgentID("abcdef").Short() != "abcd" || AgentID("ab").Short() != "ab" {
		t.Error("Short wrong")
	}
	leader := &Agent{Leader: &Leader{Wealth: 7, BudgetAllocated: 300}}
	if leader.Wealth() != 7 || leader.Budget() != 300 || leader.Happiness() != 0 {
		t.Error("leader accessors wrong")
	}
	if ClampScore(120) != 100 || ClampScore(-3) != 0 || ClampScore(55) != 55 {
		t.Error("ClampScore wrong")
	}
}
