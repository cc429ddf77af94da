// Package config loads run settings from YAML with environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/robot-expedition/internal/engine"
	"github.com/talgya/robot-expedition/internal/world"
)

// Config is the full run configuration.
type Config struct {
	World      World      `yaml:"world"`
	Simulation Simulation `yaml:"simulation"`
	API        API        `yaml:"api"`
	Journal    Journal    `yaml:"journal"`
	LogLevel   string     `yaml:"log_level"`
}

// World holds the map generation settings.
type World struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	Seed             uint32  `yaml:"seed"`
	DrawSeed         int64   `yaml:"draw_seed"`
	TerrainScale     float64 `yaml:"terrain_scale"`
	ResourceScale    float64 `yaml:"resource_scale"`
	ResourceQuantity int     `yaml:"resource_quantity"`
}

// Simulation holds robot tuning and clock settings.
type Simulation struct {
	TickIntervalMs    int   `yaml:"tick_interval_ms"`
	MinIntervalMs     int   `yaml:"min_interval_ms"`
	SpeedStepMs       int   `yaml:"speed_step_ms"`
	HarvesterCapacity int   `yaml:"harvester_capacity"`
	ScanRadius        int   `yaml:"scan_radius"`
	StuckLimit        int   `yaml:"stuck_limit"`
	HarvesterCost     int   `yaml:"harvester_cost"`
	RobotSeed         int64 `yaml:"robot_seed"`
	StartRunning      bool  `yaml:"start_running"`
}

// API holds the HTTP control surface settings.
type API struct {
	Port              int    `yaml:"port"`
	AdminKey          string `yaml:"admin_key"`
	DispatchPerMinute int    `yaml:"dispatch_per_minute"`
}

// Journal holds where events are recorded.
type Journal struct {
	DBPath      string `yaml:"db_path"`
	EventLogDir string `yaml:"event_log_dir"`
}

// Default returns the standard configuration.
func Default() Config {
	g := world.DefaultGenConfig()
	return Config{
		World: World{
			Width:            g.Width,
			Height:           g.Height,
			Seed:             g.Seed,
			TerrainScale:     g.TerrainScale,
			ResourceScale:    g.ResourceScale,
			ResourceQuantity: g.ResourceQuantity,
		},
		Simulation: Simulation{
			TickIntervalMs:    int(engine.DefaultInterval / time.Millisecond),
			MinIntervalMs:     int(engine.DefaultMinimum / time.Millisecond),
			SpeedStepMs:       int(engine.DefaultSpeedStep / time.Millisecond),
			HarvesterCapacity: 5,
			ScanRadius:        5,
			StuckLimit:        20,
		},
		API: API{
			Port:              8080,
			DispatchPerMinute: 60,
		},
		Journal: Journal{
			DBPath: ":memory:",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, c.Validate()
}

// ApplyEnv overrides settings from EXPEDITION_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("EXPEDITION_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("EXPEDITION_SEED: %w", err)
		}
		c.World.Seed = uint32(seed)
	}
	if v := getenv("EXPEDITION_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EXPEDITION_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := getenv("EXPEDITION_ADMIN_KEY"); v != "" {
		c.API.AdminKey = v
	}
	if v := getenv("EXPEDITION_DB"); v != "" {
		c.Journal.DBPath = v
	}
	if v := getenv("EXPEDITION_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return c.Validate()
}

// Validate rejects settings that would produce a degenerate world.
func (c Config) Validate() error {
	if c.World.Width < world.MinDimension || c.World.Height < world.MinDimension {
		return fmt.Errorf("world must be at least %dx%d, got %dx%d",
			world.MinDimension, world.MinDimension, c.World.Width, c.World.Height)
	}
	if c.World.TerrainScale <= 0 || c.World.ResourceScale <= 0 {
		return fmt.Errorf("noise scales must be positive")
	}
	if c.World.ResourceQuantity <= 0 {
		return fmt.Errorf("resource_quantity must be positive")
	}
	if c.Simulation.HarvesterCapacity <= 0 {
		return fmt.Errorf("harvester_capacity must be positive")
	}
	if c.Simulation.StuckLimit <= 0 {
		return fmt.Errorf("stuck_limit must be positive")
	}
	if c.Simulation.MinIntervalMs <= 0 {
		return fmt.Errorf("min_interval_ms must be positive")
	}
	return nil
}

// Engine converts the file settings into an engine configuration.
func (c Config) Engine() engine.Config {
	ec := engine.DefaultConfig()

	ec.World.Width = c.World.Width
	ec.World.Height = c.World.Height
	ec.World.Seed = c.World.Seed
	ec.World.DrawSeed = c.World.DrawSeed
	ec.World.TerrainScale = c.World.TerrainScale
	ec.World.ResourceScale = c.World.ResourceScale
	ec.World.ResourceQuantity = c.World.ResourceQuantity

	ec.Robot.Capacity = c.Simulation.HarvesterCapacity
	ec.Robot.ScanRadius = c.Simulation.ScanRadius
	ec.Robot.StuckLimit = c.Simulation.StuckLimit

	ec.TickInterval = time.Duration(c.Simulation.TickIntervalMs) * time.Millisecond
	ec.MinInterval = time.Duration(c.Simulation.MinIntervalMs) * time.Millisecond
	ec.SpeedStep = time.Duration(c.Simulation.SpeedStepMs) * time.Millisecond
	ec.HarvesterCost = c.Simulation.HarvesterCost
	ec.RobotSeed = c.Simulation.RobotSeed
	ec.StartRunning = c.Simulation.StartRunning
	return ec
}

// SlogLevel maps the configured level name to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
