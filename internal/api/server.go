// Package api provides the HTTP control surface for the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/narrative"
	"github.com/talgya/sworm/internal/persistence"
	"github.com/talgya/sworm/internal/social"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	defaultNewsLimit    = 20
)

// HistoryReader is the read side of a history store.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]engine.HistoryRecord, error)
	RecentNews(ctx context.Context, limit int) ([]social.NewsEntry, error)
}

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	LLM      *narrative.Client
	History  HistoryReader // nil when persistence is disabled
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST open.
	// TrustProxy keys rate limits on the proxy-appended X-Forwarded-For hop.
	TrustProxy bool

	// Cached chronicle (regenerated at most once per tick).
	chronicleMu     sync.Mutex
	cachedChronicle *narrative.Chronicle
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	chronicleLimiter := NewRateLimiter(10, time.Hour)

	mux := http.NewServeMux()

	// Public observation.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/simulation/state", s.handleState)
	mux.HandleFunc("GET /api/v1/simulation/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/simulation/brain", s.handleBrain)
	mux.HandleFunc("GET /api/v1/news", s.handleNews)
	mux.HandleFunc("GET /api/v1/chronicle", RateLimitMiddleware(chronicleLimiter, s.TrustProxy, s.handleChronicle))

	// Control plane.
	mux.HandleFunc("POST /api/v1/simulation/start", s.adminOnly(s.handleStart))
	mux.HandleFunc("POST /api/v1/simulation/stop", s.adminOnly(s.handleStop))
	mux.HandleFunc("POST /api/v1/simulation/tick", s.adminOnly(s.handleTick))
	mux.HandleFunc("POST /api/v1/simulation/election", s.adminOnly(s.handleElection))

	return corsMiddleware(mux)
}

// Start begins serving in a goroutine and returns the server for shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "history", s.History != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request carries the admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the bearer token when an admin key is set.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.Sim.State()
	writeJSON(w, map[string]any{
		"name":          state.Nation.Name,
		"tick":          state.Tick,
		"running":       s.Sim.Running(),
		"seed":          s.Sim.Seed(),
		"agents":        len(state.Agents),
		"population":    state.Metrics.Population,
		"avg_trust":     state.Metrics.AvgTrust,
		"avg_happiness": state.Metrics.AvgHappiness,
		"sl_budget":     state.Metrics.SLBudget,
		"persistence":   s.History != nil,
		"llm":           s.LLM.Enabled(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.State())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}

	limit, ok := limitParam(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	recs, err := s.History.History(r.Context(), limit)
	if errors.Is(err, persistence.ErrNoHistory) {
		writeJSON(w, []engine.HistoryRecord{})
		return
	}
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	limit, ok := limitParam(w, r, defaultNewsLimit)
	if !ok {
		return
	}
	news, err := s.History.RecentNews(r.Context(), limit)
	if err != nil {
		slog.Error("news query failed", "error", err)
		http.Error(w, "news query failed", http.StatusInternalServerError)
		return
	}
	if news == nil {
		news = []social.NewsEntry{}
	}
	writeJSON(w, news)
}

// limitParam parses ?limit=, writing a 400 and returning false when invalid.
func limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def, true
	}
	v, err := strconv.Atoi(l)
	if err != nil || v <= 0 || v > maxHistoryLimit {
		http.Error(w, fmt.Sprintf("limit must be 1-%d", maxHistoryLimit), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func (s *Server) handleBrain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.LearnerSnapshots())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Sim.Start()
	writeJSON(w, map[string]any{"running": true, "tick": s.Sim.Tick()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Sim.Stop()
	writeJSON(w, map[string]any{"running": false, "tick": s.Sim.Tick()})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Advance(r.Context()))
}

func (s *Server) handleElection(w http.ResponseWriter, r *http.Request) {
	results := s.Sim.ForceElection(r.Context())
	slog.Info("forced election", "states", len(results))
	writeJSON(w, map[string]any{
		"tick":    s.Sim.Tick(),
		"results": results,
	})
}

func (s *Server) handleChronicle(w http.ResponseWriter, r *http.Request) {
	s.chronicleMu.Lock()
	defer s.chronicleMu.Unlock()

	state := s.Sim.State()
	if s.cachedChronicle != nil && s.cachedChronicle.Tick == state.Tick {
		writeJSON(w, s.cachedChronicle)
		return
	}

	data := buildChronicleData(state)
	chronicle := narrative.GenerateChronicle(r.Context(), s.LLM, data)
	slog.Info("chronicle generated", "tick", state.Tick, "source", chronicle.Source,
		"budget", humanize.FormatFloat("#,###.##", data.Budget))

	s.cachedChronicle = chronicle
	writeJSON(w, chronicle)
}

func buildChronicleData(state engine.TickResult) *narrative.ChronicleData {
	m := state.Metrics
	data := &narrative.ChronicleData{
		Tick:         state.Tick,
		Nation:       state.Nation.Name,
		Population:   m.Population,
		AvgHappiness: m.AvgHappiness,
		AvgWealth:    m.AvgWealth,
		AvgTrust:     m.AvgTrust,
		Inflation:    m.Inflation,
		Unemployment: m.Unemployment,
		Inequality:   m.Inequality,
		Budget:       m.SLBudget,
		News:         state.News,
	}

	byID := make(map[agents.AgentID]*agents.Agent, len(state.Agents))
	for _, a := range state.Agents {
		byID[a.ID] = a
		if a.External != nil {
			data.ActiveEvent = a.External.ActiveEvent
		}
	}
	for _, st := range state.Nation.States {
		leader := "vacant"
		if a, ok := byID[st.LeaderID]; ok {
			leader = engine.LeaderName(a)
		}
		data.States = append(data.States, narrative.StateSummary{
			Name:       st.Name,
			Population: st.Population,
			Leader:     leader,
			Trust:      st.TrustIndex,
			Wealth:     st.EconomyIndex,
		})
	}
	return data
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
