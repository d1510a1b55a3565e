// Package config loads worldsim settings from a YAML file and WORLDSIM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/world"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WORLDSIM_"

// Config holds every worldsim setting. Environment variables override the
// file; for example WORLDSIM_SIM_STEP_MINUTES sets Sim.StepMinutes.
type Config struct {
	World    WorldConfig   `yaml:"world" envPrefix:"WORLD_"`
	Clock    clock.Config  `yaml:"clock" envPrefix:"CLOCK_"`
	Events   EventsConfig  `yaml:"events" envPrefix:"EVENTS_"`
	Behavior agents.Tuning `yaml:"behavior" envPrefix:"BEHAVIOR_"`
	Places   world.Tuning  `yaml:"places" envPrefix:"PLACES_"`
	Sim      SimConfig     `yaml:"sim" envPrefix:"SIM_"`
	Storage  StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	API      APIConfig     `yaml:"api" envPrefix:"API_"`
	Log      LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// WorldConfig names and sizes the world. The sizes only matter when a new
// world is generated.
type WorldConfig struct {
	Name string `yaml:"name" env:"NAME"`
	Seed uint64 `yaml:"seed" env:"SEED"`
	// Catalog is a content catalog file; empty uses the embedded one.
	Catalog              string `yaml:"catalog" env:"CATALOG"`
	engine.GenesisConfig `yaml:",inline"`
}

// EventsConfig bounds the in-memory event and failure history.
type EventsConfig struct {
	HistoryCap int `yaml:"history_cap" env:"HISTORY_CAP"`
	FailureCap int `yaml:"failure_cap" env:"FAILURE_CAP"`
}

// SimConfig drives the run loop.
type SimConfig struct {
	// StepMinutes is the simulated time covered by one step.
	StepMinutes uint64 `yaml:"step_minutes" env:"STEP_MINUTES"`
	// Interval is the wall time between steps at speed 1.
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// Speed multiplies the step rate; 0 starts paused.
	Speed           float64 `yaml:"speed" env:"SPEED"`
	CheckInvariants bool    `yaml:"check_invariants" env:"CHECK_INVARIANTS"`
}

// StorageConfig locates saved state.
type StorageConfig struct {
	DB            string        `yaml:"db" env:"DB"`
	Snapshot      string        `yaml:"snapshot" env:"SNAPSHOT"`
	SaveEvery     time.Duration `yaml:"save_every" env:"SAVE_EVERY"`
	KeepSnapshots int           `yaml:"keep_snapshots" env:"KEEP_SNAPSHOTS"`
	ArchiveEvents bool          `yaml:"archive_events" env:"ARCHIVE_EVENTS"`
}

// APIConfig configures the HTTP adapter. An empty AdminKey disables the
// admin endpoints.
type APIConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	AdminKey string `yaml:"admin_key" env:"ADMIN_KEY"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns a Config with default values.
func Default() *Config {
	opts := engine.DefaultOptions()
	return &Config{
		World: WorldConfig{
			Name:          opts.Name,
			Seed:          opts.Seed,
			GenesisConfig: engine.DefaultGenesis(),
		},
		Clock: clock.DefaultConfig(),
		Events: EventsConfig{
			HistoryCap: opts.HistoryCap,
			FailureCap: opts.FailureCap,
		},
		Behavior: agents.DefaultTuning(),
		Places:   world.DefaultTuning(),
		Sim: SimConfig{
			StepMinutes:     1,
			Interval:        time.Second,
			Speed:           1,
			CheckInvariants: true,
		},
		Storage: StorageConfig{
			DB:            "data/world.db",
			Snapshot:      "data/world.snap.zst",
			SaveEvery:     5 * time.Minute,
			KeepSnapshots: 10,
			ArchiveEvents: true,
		},
		API: APIConfig{Addr: ":8080"},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that cannot run.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Name == "" {
		errs = append(errs, errors.New("world.name is empty"))
	}
	if c.World.Places <= 0 {
		errs = append(errs, errors.New("world.places must be positive"))
	}
	if c.World.Agents < 0 {
		errs = append(errs, errors.New("world.agents is negative"))
	}
	if c.World.MinDistance == 0 || c.World.MaxDistance < c.World.MinDistance {
		errs = append(errs, fmt.Errorf("world distances %d..%d are not a valid range", c.World.MinDistance, c.World.MaxDistance))
	}
	if err := c.Clock.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("clock: %w", err))
	}
	if c.Clock.Business.End == c.Clock.Business.Start {
		errs = append(errs, fmt.Errorf("clock: business hours %d-%d are empty", c.Clock.Business.Start, c.Clock.Business.End))
	}
	if c.Events.HistoryCap < 0 || c.Events.FailureCap < 0 {
		errs = append(errs, errors.New("events: capacities must not be negative"))
	}
	if err := c.Behavior.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("behavior: %w", err))
	}
	if p := c.Places.WeatherChance; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("places.weather_chance %v outside [0,1]", p))
	}
	if p := c.Places.QuestChance; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("places.quest_chance %v outside [0,1]", p))
	}
	if c.Places.MaxQuests < 0 {
		errs = append(errs, errors.New("places.max_quests is negative"))
	}
	if c.Sim.StepMinutes == 0 {
		errs = append(errs, errors.New("sim.step_minutes must be positive"))
	}
	if c.Sim.Interval <= 0 {
		errs = append(errs, errors.New("sim.interval must be positive"))
	}
	if c.Sim.Speed < 0 {
		errs = append(errs, errors.New("sim.speed is negative"))
	}
	if c.Storage.SaveEvery < 0 {
		errs = append(errs, errors.New("storage.save_every is negative"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EngineOptions builds world options from the config.
func (c *Config) EngineOptions(logger *slog.Logger) engine.Options {
	return engine.Options{
		Name:            c.World.Name,
		Seed:            c.World.Seed,
		Clock:           c.Clock,
		HistoryCap:      c.Events.HistoryCap,
		FailureCap:      c.Events.FailureCap,
		Agents:          c.Behavior,
		Places:          c.Places,
		CheckInvariants: c.Sim.CheckInvariants,
		Logger:          logger,
	}
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the configured slog handler writing to out.
func (l LogConfig) NewLogger(out io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
