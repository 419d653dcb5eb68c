package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"testing"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/policy"
)

func smallConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.CitizensPerState = 20
	return cfg
}

// checkInvariants verifies the population, binding and nation tree agree.
func checkInvariants(t *testing.T, s *Simulation, wantAgents int) {
	t.Helper()
	if len(s.agents) != wantAgents || len(s.index) != wantAgents {
		t.Fatalf("tick %d: %d agents / %d indexed, want %d", s.tick, len(s.agents), len(s.index), wantAgents)
	}
	for _, a := range s.agents {
		if s.index[a.ID] != a {
			t.Fatalf("tick %d: agent %s not indexed", s.tick, a.ID)
		}
		if a.TrustScore < 0 || a.TrustScore > 100 {
			t.Fatalf("tick %d: trust %v out of range", s.tick, a.TrustScore)
		}
		if a.Citizen != nil && (a.Citizen.Happiness < 0 || a.Citizen.Happiness > 100) {
			t.Fatalf("tick %d: happiness %v out of range", s.tick, a.Citizen.Happiness)
		}
		if _, bound := s.policies[a.ID]; bound == (a.Kind == agents.KindExternal) {
			t.Fatalf("tick %d: %s agent binding = %v", s.tick, a.Kind, bound)
		}
	}
	for id := range s.policies {
		if _, ok := s.index[id]; !ok {
			t.Fatalf("tick %d: policy bound to dead agent %s", s.tick, id)
		}
	}
	for _, st := range s.nation.States {
		l, ok := s.index[st.LeaderID]
		if !ok || l.Kind != agents.KindLeader || l.Leader.StateID != st.ID {
			t.Fatalf("tick %d: state %s has no live leader", s.tick, st.Name)
		}
	}
}

func TestNewSimulation(t *testing.T) {
	s := NewSimulation(DefaultConfig(), nil)
	want := 3 + 3*50 + 1 + 3 + 1
	checkInvariants(t, s, want)

	res := s.State()
	if res.Tick != 0 {
		t.Fatalf("initial tick = %d, want 0", res.Tick)
	}
	if res.Metrics.Population != 150 {
		t.Errorf("population = %d, want 150", res.Metrics.Population)
	}
	if res.Metrics.Inflation != 0.02 || res.Metrics.Unemployment != 0.05 {
		t.Errorf("initial rates = %v/%v", res.Metrics.Inflation, res.Metrics.Unemployment)
	}

	kinds := map[agents.Kind]int{}
	for _, a := range res.Agents {
		kinds[a.Kind]++
	}
	if kinds[agents.KindSupremeLeader] != 1 || kinds[agents.KindExternal] != 1 || kinds[agents.KindMedia] != 3 {
		t.Errorf("kinds = %v", kinds)
	}

	members := 0
	for _, f := range res.Factions {
		members += f.Members
	}
	if members != 150 || len(res.Factions) == 0 || len(res.Factions) > 4 {
		t.Errorf("factions = %+v", res.Factions)
	}

	// Snapshots must not alias live state.
	res.Agents[0].TrustScore = -1
	res.Nation.States[0].Name = "mutated"
	if s.agents[0].TrustScore == -1 || s.nation.States[0].Name == "mutated" {
		t.Fatal("snapshot aliases live state")
	}
}

func TestAdvanceIsDeterministic(t *testing.T) {
	a := NewSimulation(smallConfig(7), nil)
	b := NewSimulation(smallConfig(7), nil)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		ra, rb := a.Advance(ctx), b.Advance(ctx)
		if !reflect.DeepEqual(ra.Metrics, rb.Metrics) {
			t.Fatalf("tick %d: metrics diverged:\n%+v\n%+v", ra.Tick, ra.Metrics, rb.Metrics)
		}
		if !reflect.DeepEqual(ra.News, rb.News) {
			t.Fatalf("tick %d: news diverged", ra.Tick)
		}
		for j := range ra.Agents {
			if ra.Agents[j].ID != rb.Agents[j].ID || ra.Agents[j].LastAction != rb.Agents[j].LastAction {
				t.Fatalf("tick %d: agent %d diverged", ra.Tick, j)
			}
		}
	}

	c := NewSimulation(smallConfig(8), nil)
	if c.State().Agents[0].ID == a.State().Agents[0].ID {
		t.Error("different seeds produced the same ids")
	}
}

func TestScheduleAndInvariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	s := NewSimulation(cfg, nil)
	want := 3 + 3*50 + 1 + 3 + 1
	checkInvariants(t, s, want)
	ctx := context.Background()

	fired := map[string][]uint64{}
	for i := 0; i < 100; i++ {
		res := s.Advance(ctx)
		if res.Tick != uint64(i+1) {
			t.Fatalf("tick = %d, want %d", res.Tick, i+1)
		}
		for _, c := range res.Cycles {
			fired[c] = append(fired[c], res.Tick)
		}
		if len(res.News) > 10 {
			t.Fatalf("news feed holds %d entries", len(res.News))
		}
		checkInvariants(t, s, want)
	}

	expect := map[string][]uint64{
		CycleElection:   {50, 100},
		CycleReview:     {25, 50, 75, 100},
		CycleTaxes:      {10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		CycleWorldEvent: {40, 80},
	}
	for cycle, ticks := range expect {
		if !reflect.DeepEqual(fired[cycle], ticks) {
			t.Errorf("%s fired at %v, want %v", cycle, fired[cycle], ticks)
		}
	}
	if len(fired[CycleFeedback]) != 20 {
		t.Errorf("feedback fired %d times, want 20", len(fired[CycleFeedback]))
	}

	snaps := s.LearnerSnapshots()
	sl := snaps[s.nation.SupremeLeaderID]
	if !sl.LongHorizon || sl.MemorySize == 0 {
		t.Errorf("supreme leader learner = %+v, want long-horizon with memory", sl)
	}
	for _, st := range s.nation.States {
		if snaps[st.LeaderID].Kind != "hybrid" {
			t.Errorf("state %s leader learner = %+v", st.Name, snaps[st.LeaderID])
		}
	}
}

type recordingSink struct {
	ticks []uint64
	err   error
}

func (r *recordingSink) RecordTick(_ context.Context, rec HistoryRecord) error {
	r.ticks = append(r.ticks, rec.Tick)
	return r.err
}

func TestPersistenceFailureDoesNotAbortTick(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk on fire")}
	s := NewSimulation(smallConfig(1), sink)
	for i := 0; i < 3; i++ {
		if res := s.Advance(context.Background()); res.Tick != uint64(i+1) {
			t.Fatalf("tick = %d", res.Tick)
		}
	}
	if !reflect.DeepEqual(sink.ticks, []uint64{1, 2, 3}) {
		t.Fatalf("recorded ticks = %v", sink.ticks)
	}
}

func TestForceElection(t *testing.T) {
	s := NewSimulation(smallConfig(5), nil)
	s.Advance(context.Background())

	// A hated leader must lose.
	hated := s.index[s.nation.States[0].LeaderID]
	hated.TrustScore = 0

	results := s.ForceElection(context.Background())
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].IncumbentWon || results[0].NewLeader == nil {
		t.Fatalf("hated incumbent re-elected: %+v", results[0])
	}
	if s.nation.States[0].LeaderID != results[0].NewLeader.ID {
		t.Error("state leader not updated")
	}
	if _, ok := s.index[hated.ID]; ok {
		t.Error("defeated leader still in the population")
	}
	if _, ok := s.policies[hated.ID]; ok {
		t.Error("defeated leader still bound to a policy")
	}
	news := s.State().News
	found := false
	for _, n := range news {
		if n.Outcome == "Incumbent Defeated" && n.Locale == "State 1" {
			found = true
		}
	}
	if !found {
		t.Errorf("no defeat news in %+v", news)
	}
	checkInvariants(t, s, 3+60+1+3+1)
}

func TestReviewDismissesFailingLeader(t *testing.T) {
	s := NewSimulation(smallConfig(6), nil)
	st := s.nation.States[1]
	old := s.index[st.LeaderID]
	old.TrustScore = 5

	s.reviewLeaders(25)
	if st.LeaderID == old.ID {
		t.Fatal("failing leader kept office")
	}
	if _, ok := s.policies[st.LeaderID]; !ok {
		t.Error("replacement leader has no policy")
	}
	if got := s.news.Entries()[0]; got.Outcome != "Leader Dismissed" || got.Reason != "Low Trust" {
		t.Errorf("news = %+v", got)
	}
	for _, other := range []int{0, 2} {
		if s.index[s.nation.States[other].LeaderID] == nil {
			t.Errorf("state %d lost its leader", other)
		}
	}
}

func TestTurnoverReplacesInPlace(t *testing.T) {
	s := NewSimulation(smallConfig(2), nil)
	var idx int
	for i, a := range s.agents {
		if a.Citizen != nil {
			idx = i
			break
		}
	}
	parent := s.agents[idx]
	parent.Citizen.Age = parent.Citizen.Lifespan - 1
	parent.Citizen.Wealth = 30

	s.processTurnover(1)
	child := s.agents[idx]
	if child.ID == parent.ID {
		t.Fatal("citizen at end of lifespan was not replaced")
	}
	if child.Citizen.Wealth != 15 || child.Citizen.Age != 0 || child.Citizen.StateID != parent.Citizen.StateID {
		t.Errorf("child = %+v", child.Citizen)
	}
	if _, ok := s.policies[parent.ID]; ok {
		t.Error("dead citizen still bound")
	}
	if _, ok := s.policies[child.ID].(*policy.RuleBased); !ok {
		t.Error("child has no rule-based policy")
	}
}

func TestWorldEventLifecycle(t *testing.T) {
	s := NewSimulation(smallConfig(4), nil)
	ext := s.external()
	ext.External.ActiveEvent = "Natural Disaster"
	ext.External.EventSeverity = -15

	var c *agents.Agent
	for _, a := range s.agents {
		if a.Citizen != nil {
			c = a
			break
		}
	}
	c.Citizen.Happiness = 50
	c.Citizen.Wealth = 1

	if s.processWorldEvents(3) {
		t.Error("tick 3 reported as a scheduled check")
	}
	if c.Citizen.Happiness != 48.5 || c.Citizen.Wealth != 0 {
		t.Errorf("after disaster: happiness %v wealth %v, want 48.5 and 0", c.Citizen.Happiness, c.Citizen.Wealth)
	}

	s.processWorldEvents(20)
	if ext.External.ActiveEvent != "" {
		t.Fatalf("event still active at tick 20: %q", ext.External.ActiveEvent)
	}
	if s.news.Entries()[0].Outcome != "Global Event Ended" {
		t.Errorf("news = %+v", s.news.Entries()[0])
	}
}

func TestInequalityAndRates(t *testing.T) {
	pop := func(ws ...float64) []*agents.Agent {
		var out []*agents.Agent
		for _, w := range ws {
			out = append(out, &agents.Agent{Citizen: &agents.Citizen{Wealth: w}})
		}
		return out
	}
	if got := Inequality(pop(10, 10)); got != 0 {
		t.Errorf("equal wealth inequality = %v", got)
	}
	if got := Inequality(pop(0, 20)); math.Abs(got-10/10.1) > 1e-12 {
		t.Errorf("inequality = %v, want %v", got, 10/10.1)
	}
	if got := Inequality(nil); got != 0 {
		t.Errorf("empty inequality = %v", got)
	}

	infl, unemp := NextRates(0.02, 0.05, 0)
	if math.Abs(infl-0.0195) > 1e-12 || math.Abs(unemp-(0.05+0.00195-0.001)) > 1e-12 {
		t.Errorf("NextRates = %v, %v", infl, unemp)
	}
	infl, unemp = NextRates(0.01, 0.02, 0)
	if infl != 0.01 || unemp != 0.02 {
		t.Errorf("floors: %v, %v", infl, unemp)
	}
}

func TestStateVector(t *testing.T) {
	leader := &agents.Agent{TrustScore: 40, Leader: &agents.Leader{Wealth: 2500, BudgetAllocated: 333}}
	v := StateVector(leader, 0.03, 0.06, 1.7)
	want := []float64{0.4, 1, 0, 0.333, 0.03, 0.06, 1}
	for i := range want {
		if math.Abs(v[i]-want[i]) > 1e-12 {
			t.Errorf("v[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestTickReportRoundsMoney(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := smallConfig(9)
	cfg.Schedule.ReportEvery = 1
	s := NewSimulation(cfg, nil)
	s.Advance(context.Background())

	out := buf.String()
	for _, key := range []string{"sl_budget", "avg_wealth"} {
		m := regexp.MustCompile(key + `=(\S+)`).FindStringSubmatch(out)
		if m == nil {
			t.Fatalf("no %s in report: %s", key, out)
		}
		if !regexp.MustCompile(`^-?[0-9,]+(\.[0-9]{1,2})?$`).MatchString(m[1]) {
			t.Errorf("%s = %q, want at most two decimals", key, m[1])
		}
	}
}
