// Package config provides configuration loading and access for the arena.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all arena configuration parameters.
type Config struct {
	Arena     ArenaConfig       `yaml:"arena"`
	Goal      GoalConfig        `yaml:"goal"`
	Fields    FieldsConfig      `yaml:"fields"`
	Towers    []TowerConfig     `yaml:"towers"`
	Layout    []PlacementConfig `yaml:"layout"`
	Monsters  MonstersConfig    `yaml:"monsters"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ArenaConfig holds arena extents.
type ArenaConfig struct {
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	GridSize int `yaml:"grid_size"` // side of a placement square
}

// GoalConfig is the single goal cell monsters walk toward.
type GoalConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// FieldsConfig holds cost field tunables.
type FieldsConfig struct {
	TieBreakEpsilon float64 `yaml:"tie_break_epsilon"` // added to every attacks-field step
}

// TowerConfig defines one entry in the tower catalog.
type TowerConfig struct {
	Name       string `yaml:"name"`
	MinRange   int    `yaml:"min_range"`
	MaxRange   int    `yaml:"max_range"`
	Reload     int    `yaml:"reload"`      // frames per attack
	MinReload  int    `yaml:"min_reload"`  // upgrades stop lowering reload here
	ReloadStep int    `yaml:"reload_step"` // reload reduction per upgrade
	RangeStep  int    `yaml:"range_step"`  // max range gain per upgrade
	MaxLevel   int    `yaml:"max_level"`   // 0 = unlimited
}

// Catalog defaults for keys a tower entry leaves out.
const (
	defaultMinReload  = 2
	defaultReloadStep = 1
)

// UnmarshalYAML fills catalog defaults before decoding, so only keys absent
// from the entry keep them. An explicit reload_step: 0 stays 0.
func (t *TowerConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain TowerConfig
	p := plain{MinReload: defaultMinReload, ReloadStep: defaultReloadStep}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TowerConfig(p)
	return nil
}

// PlacementConfig is one scripted tower placement for the headless runner.
type PlacementConfig struct {
	Tower    string `yaml:"tower"`
	X        int    `yaml:"x"`
	Y        int    `yaml:"y"`
	Upgrades int    `yaml:"upgrades"`
}

// MonstersConfig controls the monsters the runner spawns.
type MonstersConfig struct {
	Count  int    `yaml:"count"` // per strategy
	SpawnX int    `yaml:"spawn_x"`
	SpawnY int    `yaml:"spawn_y"`
	Field  string `yaml:"field"` // "shortest", "safest" or "both"
}

// TelemetryConfig holds output settings.
type TelemetryConfig struct {
	OutputDir  string `yaml:"output_dir"`
	DumpFields bool   `yaml:"dump_fields"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Bounds     arena.Bounds
	TowerIndex map[string]uint8 // name -> index for catalog lookup
	Strategies []components.Strategy
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file; lists replace wholesale.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived fills catalog defaults and calculates derived values.
func (c *Config) computeDerived() error {
	c.Derived.Bounds = arena.Bounds{
		Width:    c.Arena.Width,
		Height:   c.Arena.Height,
		GridSize: c.Arena.GridSize,
	}

	// Entries built in code rather than decoded never set min_reload.
	for i := range c.Towers {
		if c.Towers[i].MinReload == 0 {
			c.Towers[i].MinReload = defaultMinReload
		}
	}

	c.Derived.TowerIndex = make(map[string]uint8, len(c.Towers))
	for i, t := range c.Towers {
		c.Derived.TowerIndex[t.Name] = uint8(i)
	}

	switch c.Monsters.Field {
	case "", "both":
		c.Derived.Strategies = []components.Strategy{components.StrategyShortest, components.StrategySafest}
	default:
		s, ok := components.ParseStrategy(c.Monsters.Field)
		if !ok {
			return fmt.Errorf("monsters.field: unknown strategy %q", c.Monsters.Field)
		}
		c.Derived.Strategies = []components.Strategy{s}
	}
	return nil
}

// Validate checks the arena, goal, spawn point and tower catalog.
func (c *Config) Validate() error {
	b := c.Derived.Bounds
	if err := b.Validate(); err != nil {
		return fmt.Errorf("arena: %w", err)
	}
	if _, err := b.NewPosition(c.Goal.X, c.Goal.Y); err != nil {
		return fmt.Errorf("goal: %w", err)
	}
	if _, err := b.NewPosition(c.Monsters.SpawnX, c.Monsters.SpawnY); err != nil {
		return fmt.Errorf("monsters.spawn: %w", err)
	}
	if !(c.Fields.TieBreakEpsilon > 0) {
		return fmt.Errorf("fields.tie_break_epsilon must be > 0, got %v", c.Fields.TieBreakEpsilon)
	}
	if len(c.Towers) > 256 {
		return fmt.Errorf("towers: catalog holds %d entries, max 256", len(c.Towers))
	}
	for i, t := range c.Towers {
		if t.Name == "" {
			return fmt.Errorf("towers[%d]: missing name", i)
		}
		if t.MinRange < 0 || t.MaxRange < t.MinRange {
			return fmt.Errorf("towers[%s]: invalid range [%d, %d]", t.Name, t.MinRange, t.MaxRange)
		}
		if t.Reload <= 0 || t.MinReload <= 0 || t.MinReload > t.Reload {
			return fmt.Errorf("towers[%s]: invalid reload %d (min %d)", t.Name, t.Reload, t.MinReload)
		}
		if t.ReloadStep < 0 || t.RangeStep < 0 || t.MaxLevel < 0 {
			return fmt.Errorf("towers[%s]: upgrade steps must be >= 0", t.Name)
		}
		if j := c.Derived.TowerIndex[t.Name]; int(j) != i {
			return fmt.Errorf("towers[%s]: duplicate name", t.Name)
		}
	}
	for i, p := range c.Layout {
		if _, ok := c.Derived.TowerIndex[p.Tower]; !ok {
			return fmt.Errorf("layout[%d]: unknown tower %q", i, p.Tower)
		}
	}
	return nil
}

// Tower returns the catalog entry for name.
func (c *Config) Tower(name string) (TowerConfig, uint8, bool) {
	idx, ok := c.Derived.TowerIndex[name]
	if !ok {
		return TowerConfig{}, 0, false
	}
	return c.Towers[idx], idx, true
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
