// Package config loads process configuration: defaults, an optional YAML file,
// then environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/economy"
	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/policy"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Persistence backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendNone      = "none"
)

// Config is the full process configuration.
type Config struct {
	Seed        int64             `yaml:"seed"`
	World       WorldConfig       `yaml:"world"`
	Economy     EconomyConfig     `yaml:"economy"`
	Schedule    engine.Schedule   `yaml:"schedule"`
	Persistence PersistenceConfig `yaml:"persistence"`
	API         APIConfig         `yaml:"api"`
	Log         LogConfig         `yaml:"log"`
	LLM         LLMConfig         `yaml:"llm"`
}

type WorldConfig struct {
	Name             string              `yaml:"name"`
	States           int                 `yaml:"states"`
	CitizensPerState int                 `yaml:"citizens_per_state"`
	Media            int                 `yaml:"media"`
	Width            float64             `yaml:"width"`
	Height           float64             `yaml:"height"`
	Education        agents.Distribution `yaml:"education_distribution"`
	Ideology         agents.Distribution `yaml:"ideology_distribution"`
	MediaHidden      int                 `yaml:"media_hidden"`
}

type EconomyConfig struct {
	NationalBudget      float64 `yaml:"national_budget"`
	InitialInflation    float64 `yaml:"initial_inflation"`
	InitialUnemployment float64 `yaml:"initial_unemployment"`
}

type PersistenceConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Project    string `yaml:"project"`
	Collection string `yaml:"collection"`
}

type APIConfig struct {
	Port         int           `yaml:"port"`
	AdminKey     string        `yaml:"admin_key"`
	TickInterval time.Duration `yaml:"tick_interval"` // 0 = tick only on request
	// TrustProxy takes client addresses from X-Forwarded-For. Enable only
	// behind a proxy that appends to the header.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, text, json
}

type LLMConfig struct {
	APIKey string `yaml:"api_key"`
}

// SlogLevel parses the configured level; empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
	}
	return level, nil
}

// Default returns the canonical world with local SQLite persistence.
func Default() Config {
	e := engine.DefaultConfig()
	return Config{
		Seed: e.Seed,
		World: WorldConfig{
			Name:             e.NationName,
			States:           e.States,
			CitizensPerState: e.CitizensPerState,
			Media:            e.Media,
			Width:            e.Width,
			Height:           e.Height,
			Education:        e.Spawn.Education,
			Ideology:         e.Spawn.Ideology,
			MediaHidden:      policy.DefaultHidden,
		},
		Economy: EconomyConfig{
			NationalBudget:      economy.NationalBudget,
			InitialInflation:    e.InitialInflation,
			InitialUnemployment: e.InitialUnemployment,
		},
		Schedule: engine.DefaultSchedule(),
		Persistence: PersistenceConfig{
			Backend:    BackendSQLite,
			Path:       "data/sworm.db",
			Collection: "runs",
		},
		API: APIConfig{Port: 8080},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// Load builds a config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Path returns the config file named by SWORM_CONFIG, or flagValue when set.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("SWORM_CONFIG")
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SWORM_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: SWORM_SEED %q: %v", ErrInvalid, v, err)
		}
		c.Seed = seed
	}
	if v, ok := lookup("SWORM_DB_PATH"); ok && v != "" {
		c.Persistence.Path = v
	}
	if v, ok := lookup("SWORM_PERSISTENCE"); ok && v != "" {
		c.Persistence.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("GOOGLE_CLOUD_PROJECT"); ok && v != "" {
		c.Persistence.Project = v
	}
	if v, ok := lookup("SWORM_ADMIN_KEY"); ok && v != "" {
		c.API.AdminKey = v
	}
	if v, ok := lookup("SWORM_TRUST_PROXY"); ok && v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SWORM_TRUST_PROXY %q: %v", ErrInvalid, v, err)
		}
		c.API.TrustProxy = trust
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q: %v", ErrInvalid, v, err)
		}
		c.API.Port = port
	}
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok && v != "" {
		c.LLM.APIKey = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.World.States < 1:
		return fmt.Errorf("%w: world.states must be at least 1", ErrInvalid)
	case c.World.CitizensPerState < 0:
		return fmt.Errorf("%w: world.citizens_per_state must not be negative", ErrInvalid)
	case c.World.Media < 0:
		return fmt.Errorf("%w: world.media must not be negative", ErrInvalid)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world dimensions must be positive", ErrInvalid)
	case c.World.MediaHidden < 1:
		return fmt.Errorf("%w: world.media_hidden must be at least 1", ErrInvalid)
	case c.Economy.NationalBudget < 0:
		return fmt.Errorf("%w: economy.national_budget must not be negative", ErrInvalid)
	case c.API.Port < 0 || c.API.Port > 65535:
		return fmt.Errorf("%w: api.port %d out of range", ErrInvalid, c.API.Port)
	case c.API.TickInterval < 0:
		return fmt.Errorf("%w: api.tick_interval must not be negative", ErrInvalid)
	}
	for _, d := range []agents.Distribution{c.World.Education, c.World.Ideology} {
		switch d {
		case agents.DistNormal, agents.DistSkewedLow, agents.DistSkewedHigh, agents.DistUniform:
		default:
			return fmt.Errorf("%w: unknown distribution %q", ErrInvalid, d)
		}
	}
	switch c.Persistence.Backend {
	case BackendSQLite:
		if c.Persistence.Path == "" {
			return fmt.Errorf("%w: persistence.path required for sqlite", ErrInvalid)
		}
	case BackendFirestore:
		if c.Persistence.Project == "" {
			return fmt.Errorf("%w: persistence.project required for firestore", ErrInvalid)
		}
	case BackendNone:
	default:
		return fmt.Errorf("%w: unknown persistence backend %q", ErrInvalid, c.Persistence.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// EngineConfig derives the engine's view of the world.
func (c Config) EngineConfig() engine.Config {
	e := engine.DefaultConfig()
	e.Seed = c.Seed
	e.NationName = c.World.Name
	e.States = c.World.States
	e.CitizensPerState = c.World.CitizensPerState
	e.Media = c.World.Media
	e.Width = c.World.Width
	e.Height = c.World.Height
	e.NationalBudget = c.Economy.NationalBudget
	e.InitialInflation = c.Economy.InitialInflation
	e.InitialUnemployment = c.Economy.InitialUnemployment
	e.Spawn = agents.SpawnConfig{Education: c.World.Education, Ideology: c.World.Ideology}
	e.MediaHidden = c.World.MediaHidden
	e.Schedule = c.Schedule
	return e
}
