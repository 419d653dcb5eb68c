// Command sworm runs the layered-society simulation behind its HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/sworm/internal/api"
	"github.com/talgya/sworm/internal/config"
	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/entropy"
	"github.com/talgya/sworm/internal/narrative"
	"github.com/talgya/sworm/internal/persistence"
)

// store is what the process needs from a persistence backend.
type store interface {
	engine.HistorySink
	api.HistoryReader
	RunID() string
	LastTick(ctx context.Context) (uint64, error)
	GetMeta(key string) (string, error)
	SaveMeta(key, value string) error
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $SWORM_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sworm: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	cfg.Seed = entropy.Seed(cfg.Seed)
	slog.Info("sworm starting", "seed", cfg.Seed, "states", cfg.World.States,
		"citizens_per_state", cfg.World.CitizensPerState, "persistence", cfg.Persistence.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Persistence (degrades to none on failure) ─────────────────────
	db := openStore(ctx, cfg.Persistence)
	var sink engine.HistorySink
	var history api.HistoryReader
	if db != nil {
		defer db.Close()
		sink, history = db, db
		beginRun(ctx, db, cfg.Seed, time.Now())
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(cfg.EngineConfig(), sink)

	// ── LLM Client ───────────────────────────────────────────────────
	llmClient := narrative.NewClient(cfg.LLM.APIKey)
	if llmClient != nil {
		slog.Info("LLM client enabled for chronicles")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, chronicles use the template")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("SWORM_ADMIN_KEY not set, control endpoints are open")
	}
	apiServer := &api.Server{
		Sim:        sim,
		LLM:        llmClient,
		History:    history,
		Port:       cfg.API.Port,
		AdminKey:   cfg.API.AdminKey,
		TrustProxy: cfg.API.TrustProxy,
	}
	httpServer := apiServer.Start()

	// ── Clock ─────────────────────────────────────────────────────────
	if cfg.API.TickInterval > 0 {
		sim.Start()
		go engine.NewClock(sim, cfg.API.TickInterval).Run(ctx)
	}

	fmt.Printf("\nSworm is alive: seed %d, %d states.\n", cfg.Seed, cfg.World.States)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)

	<-ctx.Done()
	slog.Info("shutting down", "tick", sim.Tick())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fmt.Println("Simulation stopped.")
}

// beginRun logs where the previous run left off, then records this run's
// identity in the store's metadata. Failures are logged and ignored.
func beginRun(ctx context.Context, st store, seed int64, started time.Time) {
	prev, err := st.GetMeta("run_id")
	if err != nil {
		slog.Warn("read previous run failed", "error", err)
	}
	if prev != "" {
		last, err := st.LastTick(ctx)
		switch {
		case errors.Is(err, persistence.ErrNoHistory):
			slog.Info("previous run recorded no ticks", "run", prev)
		case err != nil:
			slog.Warn("read previous run's last tick failed", "run", prev, "error", err)
		default:
			slog.Info("previous run found", "run", prev, "last_tick", last,
				"started_at", metaOr(st, "started_at", "unknown"))
		}
	}

	meta := [][2]string{
		{"run_id", st.RunID()},
		{"seed", strconv.FormatInt(seed, 10)},
		{"started_at", started.UTC().Format(time.RFC3339)},
	}
	for _, kv := range meta {
		if err := st.SaveMeta(kv[0], kv[1]); err != nil {
			slog.Error("save run metadata failed", "key", kv[0], "error", err)
		}
	}
	slog.Info("run started", "run", st.RunID())
}

func metaOr(st store, key, fallback string) string {
	v, err := st.GetMeta(key)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

// openStore opens the configured backend. Failures are logged and the
// process continues without persistence.
func openStore(ctx context.Context, pc config.PersistenceConfig) store {
	switch pc.Backend {
	case config.BackendSQLite:
		if dir := filepath.Dir(pc.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				slog.Error("create data dir failed, continuing without persistence", "error", err)
				return nil
			}
		}
		db, err := persistence.Open(pc.Path)
		if err != nil {
			slog.Error("open database failed, continuing without persistence", "path", pc.Path, "error", err)
			return nil
		}
		slog.Info("database opened", "path", pc.Path)
		return db
	case config.BackendFirestore:
		fs, err := persistence.NewFirestoreHistory(ctx, pc.Project, pc.Collection)
		if err != nil {
			slog.Error("firestore unavailable, continuing without persistence", "project", pc.Project, "error", err)
			return nil
		}
		slog.Info("firestore history enabled", "project", pc.Project, "collection", pc.Collection)
		return fs
	}
	return nil
}

// newLogger picks a text handler for terminals and JSON otherwise, unless the
// format is fixed by config.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level, err := lc.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	format := lc.Format
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
