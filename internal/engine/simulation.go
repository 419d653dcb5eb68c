// Simulation ties together all world systems and runs them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/economy"
	"github.com/talgya/sworm/internal/fuzzy"
	"github.com/talgya/sworm/internal/governance"
	"github.com/talgya/sworm/internal/influence"
	"github.com/talgya/sworm/internal/narrative"
	"github.com/talgya/sworm/internal/policy"
	"github.com/talgya/sworm/internal/social"
	"github.com/talgya/sworm/internal/world"
)

// Config is the engine's view of the world parameters.
type Config struct {
	Seed             int64
	NationName       string
	States           int
	CitizensPerState int
	Media            int
	Width            float64
	Height           float64

	NationalBudget      float64
	InitialInflation    float64
	InitialUnemployment float64

	Spawn       agents.SpawnConfig
	MediaHidden int
	Schedule    Schedule
}

// DefaultConfig returns the canonical world: three states of fifty citizens.
func DefaultConfig() Config {
	return Config{
		Seed:                42,
		NationName:          "Sworm Nation",
		States:              3,
		CitizensPerState:    50,
		Media:               3,
		Width:               800,
		Height:              600,
		NationalBudget:      economy.NationalBudget,
		InitialInflation:    0.02,
		InitialUnemployment: 0.05,
		Spawn:               agents.DefaultSpawnConfig(),
		MediaHidden:         policy.DefaultHidden,
		Schedule:            DefaultSchedule(),
	}
}

// TickResult is what one tick returns: a deep copy of the world after the tick.
type TickResult struct {
	Tick    uint64             `json:"tick"`
	Nation  *social.Nation     `json:"nation"`
	Agents  []*agents.Agent    `json:"agents"`
	News    []social.NewsEntry `json:"news"`
	Metrics Metrics            `json:"metrics"`
	Cycles  []string           `json:"cycles,omitempty"`

	Factions []social.FactionSummary `json:"factions"`
}

// agentIndex resolves ids against the live population.
type agentIndex map[agents.AgentID]*agents.Agent

func (ix agentIndex) Agent(id agents.AgentID) (*agents.Agent, bool) {
	a, ok := ix[id]
	return a, ok
}

// Simulation holds the complete world state and wires systems together.
// All methods are safe for concurrent use; ticks never interleave.
type Simulation struct {
	mu sync.Mutex

	cfg     Config
	rng     *rand.Rand
	layout  *world.Layout
	spawner *agents.Spawner

	agents   []*agents.Agent // Population order; every iteration goes through this slice
	index    agentIndex
	policies map[agents.AgentID]policy.Policy

	nation *social.Nation
	news   social.NewsFeed

	tick         uint64
	running      bool
	inflation    float64
	unemployment float64
	inequality   float64
	metrics      Metrics

	economy   *economy.Service
	elections *governance.ElectionService
	supreme   *governance.SupremeLeaderService
	influence *influence.Service
	morality  *fuzzy.MoralityService
	feedback  *narrative.Feedback

	sink HistorySink
}

// NewSimulation builds the initial world from cfg. sink may be nil, in which
// case no history is persisted.
func NewSimulation(cfg Config, sink HistorySink) *Simulation {
	rng := rand.New(rand.NewSource(cfg.Seed))
	layout := world.NewLayout(world.LayoutConfig{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Regions: cfg.States,
		Seed:    cfg.Seed,
	})
	spawner := agents.NewSpawner(rng, layout, cfg.Spawn)

	s := &Simulation{
		cfg:          cfg,
		rng:          rng,
		layout:       layout,
		spawner:      spawner,
		index:        make(agentIndex),
		policies:     make(map[agents.AgentID]policy.Policy),
		inflation:    cfg.InitialInflation,
		unemployment: cfg.InitialUnemployment,
		economy:      economy.NewService(rng),
		elections:    governance.NewElectionService(rng, spawner),
		supreme:      governance.NewSupremeLeaderService(spawner),
		influence:    influence.NewService(),
		morality:     fuzzy.NewMoralityService(),
		feedback:     narrative.NewFeedback(rng),
		sink:         sink,
	}
	s.initializeWorld()
	s.inequality = Inequality(s.agents)
	s.refreshStates()
	s.metrics = s.computeMetrics()

	slog.Info("world initialized",
		"seed", cfg.Seed,
		"states", len(s.nation.States),
		"agents", len(s.agents),
		"citizens", s.metrics.Population,
	)
	return s
}

func (s *Simulation) initializeWorld() {
	var states []*social.State
	for i := 0; i < s.cfg.States; i++ {
		st := &social.State{
			ID:   agents.StateID(s.spawner.NewID()),
			Name: fmt.Sprintf("State %d", i+1),
		}
		leader := s.spawner.NewLeader(st.ID)
		st.LeaderID = leader.ID
		s.add(leader)
		for _, c := range s.spawner.SpawnCitizens(st.ID, i, s.cfg.CitizensPerState) {
			s.add(c)
		}
		states = append(states, st)
	}

	name := s.cfg.NationName
	if name == "" {
		name = "Sworm Nation"
	}
	s.nation = &social.Nation{ID: s.spawner.NewID(), Name: name, States: states}

	sl := s.spawner.NewSupremeLeader()
	s.nation.SupremeLeaderID = sl.ID
	s.add(sl)

	for _, m := range s.spawner.SpawnMedia(s.cfg.Media) {
		s.add(m)
	}
	s.add(s.spawner.NewExternal())
}

// add appends an agent to the population and binds its policy.
func (s *Simulation) add(a *agents.Agent) {
	s.agents = append(s.agents, a)
	s.index[a.ID] = a
	s.bind(a)
}

// replace swaps the agent with oldID for a in place, keeping population order,
// and moves the policy binding to the newcomer.
func (s *Simulation) replace(oldID agents.AgentID, a *agents.Agent) bool {
	for i, cur := range s.agents {
		if cur.ID != oldID {
			continue
		}
		s.agents[i] = a
		delete(s.index, oldID)
		delete(s.policies, oldID)
		s.index[a.ID] = a
		s.bind(a)
		return true
	}
	return false
}

// Start sets the run flag. Advance may be called regardless of it.
func (s *Simulation) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	slog.Info("simulation started", "tick", s.tick)
}

// Stop clears the run flag.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	slog.Info("simulation stopped", "tick", s.tick)
}

// Running reports the run flag.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick returns the most recently processed tick number.
func (s *Simulation) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Seed returns the seed the world was built from.
func (s *Simulation) Seed() int64 { return s.cfg.Seed }

// State returns a snapshot of the current world without advancing it.
func (s *Simulation) State() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(nil)
}

// Advance runs one complete tick in fixed order and returns the resulting world.
func (s *Simulation) Advance(ctx context.Context) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	tick := s.tick
	sched := s.cfg.Schedule
	mark := s.news.Pushed()
	var cycles []string

	// 1. Macro-economic feedback.
	s.inequality = Inequality(s.agents)
	s.inflation, s.unemployment = NextRates(s.inflation, s.unemployment, s.inequality)

	// 2. Decisions.
	s.decide()

	// 3. Budget and state economies.
	s.runEconomy()

	// 4. Public feedback.
	if due(tick, sched.FeedbackEvery) {
		s.generateFeedback(tick)
		cycles = append(cycles, CycleFeedback)
	}

	// 5. Elections.
	if due(tick, sched.ElectionEvery) {
		s.runElections(tick)
		cycles = append(cycles, CycleElection)
	}

	// 6. Social dynamics, turnover, media and the world.
	s.influence.Propagate(s.agents)
	s.processTurnover(tick)
	s.processMedia(tick)
	if s.processWorldEvents(tick) {
		cycles = append(cycles, CycleWorldEvent)
	}

	// 7. Taxes.
	if due(tick, sched.TaxEvery) {
		s.collectTaxes()
		cycles = append(cycles, CycleTaxes)
	}

	// 8. Leader review.
	if due(tick, sched.ReviewEvery) {
		s.reviewLeaders(tick)
		cycles = append(cycles, CycleReview)
	}

	// 9. Metrics and history.
	s.refreshStates()
	s.metrics = s.computeMetrics()
	s.persist(ctx, HistoryRecord{Tick: tick, Metrics: s.metrics, News: s.news.Since(mark)})

	if due(tick, sched.ReportEvery) {
		slog.Info("tick report",
			"tick", tick,
			"citizens", s.metrics.Population,
			"avg_wealth", humanize.FormatFloat("#,###.##", s.metrics.AvgWealth),
			"avg_happiness", fmt.Sprintf("%.2f", s.metrics.AvgHappiness),
			"avg_trust", fmt.Sprintf("%.2f", s.metrics.AvgTrust),
			"inflation", fmt.Sprintf("%.4f", s.inflation),
			"unemployment", fmt.Sprintf("%.4f", s.unemployment),
			"sl_budget", humanize.FormatFloat("#,###.##", s.metrics.SLBudget),
		)
	}

	return s.snapshot(cycles)
}

// decide queries every bound policy, applies the irrationality override and
// refreshes moral resistance.
func (s *Simulation) decide() {
	pressure := (s.inflation + s.unemployment) * 5
	for _, a := range s.agents {
		p, ok := s.policies[a.ID]
		if !ok {
			continue
		}
		state := StateVector(a, s.inflation, s.unemployment, s.inequality)
		action := p.Decide(state)
		if s.rng.Float64() < a.CognitiveBias {
			action = policy.Action(s.rng.Intn(policy.NumActions))
		}
		a.LastState = state
		a.LastAction = int(action)
		a.MoralResistance = s.morality.MoralResistance(a.Greed, a.TrustScore, pressure)
	}
}

// runEconomy distributes the national budget and runs each state's economy,
// letting the leader learn from the immediate reward.
func (s *Simulation) runEconomy() {
	leaders := s.stateLeaders()
	share := economy.DistributeBudget(s.supremeLeader(), leaders, s.cfg.NationalBudget)
	cond := economy.Conditions{Inflation: s.inflation, Unemployment: s.unemployment}
	byState := s.citizensByState()

	for _, st := range s.nation.States {
		leader, ok := s.index[st.LeaderID]
		if !ok {
			slog.Debug("state without leader skipped", "state", st.Name)
			continue
		}
		st.Budget = share
		out, ok := s.economy.ProcessState(leader, byState[st.ID], cond)
		if !ok {
			continue
		}
		if p, ok := s.policies[leader.ID]; ok && leader.LastState != nil {
			p.Learn(leader.LastState, out.Action, out.Reward, leader.LastState, false)
		}
	}
}

func (s *Simulation) generateFeedback(tick uint64) {
	for _, st := range s.nation.States {
		leader, ok := s.index[st.LeaderID]
		if !ok || leader.Leader == nil {
			continue
		}
		propaganda := leader.LastAction == int(policy.ActionPropaganda)
		text := s.feedback.Generate(LeaderName(leader), st.Name, propaganda)
		leader.Leader.RecentFeedback = text

		actor := "Citizens"
		if propaganda {
			actor = "State Media"
		}
		s.news.Push(social.NewsEntry{Tick: tick, Outcome: "Social Feedback", Actor: actor, Locale: st.Name, Reason: text})
	}
}

func (s *Simulation) collectTaxes() {
	sl := s.supremeLeader()
	if sl == nil {
		return
	}
	collected := s.supreme.CollectTaxes(sl, s.stateLeaders())
	if p, ok := s.policies[sl.ID]; ok && sl.LastState != nil && sl.LastAction >= 0 {
		p.Learn(sl.LastState, policy.Action(sl.LastAction), collected, sl.LastState, false)
	}
	slog.Debug("taxes collected", "amount", collected, "budget", sl.SupremeLeader.TotalBudget)
}

func (s *Simulation) persist(ctx context.Context, rec HistoryRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordTick(ctx, rec); err != nil {
		slog.Error("history persistence failed", "tick", rec.Tick, "error", err)
	}
}

// LearnerSnapshots summarizes every policy that exposes learner state.
func (s *Simulation) LearnerSnapshots() map[agents.AgentID]policy.LearnerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[agents.AgentID]policy.LearnerSnapshot)
	for _, a := range s.agents {
		if snap, ok := s.policies[a.ID].(policy.Snapshotter); ok {
			out[a.ID] = snap.Snapshot()
		}
	}
	return out
}

// snapshot deep-copies the world. Callers hold s.mu.
func (s *Simulation) snapshot(cycles []string) TickResult {
	out := TickResult{
		Tick:    s.tick,
		Nation:  s.nation.Clone(),
		Agents:  make([]*agents.Agent, len(s.agents)),
		News:    s.news.Entries(),
		Metrics: s.metrics,
		Cycles:  cycles,

		Factions: social.SummarizeFactions(s.agents),
	}
	for i, a := range s.agents {
		out.Agents[i] = a.Clone()
	}
	return out
}

// LeaderName is the display name of a leader.
func LeaderName(a *agents.Agent) string {
	return "Leader " + a.ID.Short()
}

func (s *Simulation) supremeLeader() *agents.Agent {
	sl, ok := s.index[s.nation.SupremeLeaderID]
	if !ok || sl.SupremeLeader == nil {
		return nil
	}
	return sl
}

// stateLeaders returns the live leaders in state order.
func (s *Simulation) stateLeaders() []*agents.Agent {
	var out []*agents.Agent
	for _, st := range s.nation.States {
		if l, ok := s.index[st.LeaderID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// citizensByState groups citizens by state, each group in population order.
func (s *Simulation) citizensByState() map[agents.StateID][]*agents.Agent {
	out := make(map[agents.StateID][]*agents.Agent, len(s.nation.States))
	for _, a := range s.agents {
		if a.Citizen != nil {
			out[a.Citizen.StateID] = append(out[a.Citizen.StateID], a)
		}
	}
	return out
}
