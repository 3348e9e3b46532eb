package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/towerfield/components"
)

// TestLoadDefaults verifies the embedded defaults load and validate.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	b := cfg.Derived.Bounds
	if b.Width != 480 || b.Height != 480 || b.GridSize != 40 {
		t.Errorf("unexpected bounds %+v", b)
	}
	if cfg.Goal.X != 480 || cfg.Goal.Y != 0 {
		t.Errorf("unexpected goal %+v", cfg.Goal)
	}
	if cfg.Fields.TieBreakEpsilon != 0.001 {
		t.Errorf("unexpected epsilon %v", cfg.Fields.TieBreakEpsilon)
	}

	basic, _, ok := cfg.Tower("basic")
	if !ok {
		t.Fatal("catalog should contain basic")
	}
	if basic.MaxRange != 65 || basic.Reload != 5 {
		t.Errorf("unexpected basic tower %+v", basic)
	}
	catapult, _, _ := cfg.Tower("catapult")
	if catapult.MinRange != 50 || catapult.MaxRange != 150 {
		t.Errorf("unexpected catapult %+v", catapult)
	}
	if len(cfg.Derived.Strategies) != 2 {
		t.Errorf("field 'both' should expand to two strategies, got %v", cfg.Derived.Strategies)
	}
}

// TestLoadOverlay verifies a user file overrides only the keys it sets.
func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	overlay := `
goal:
  x: 0
  y: 0
towers:
  - name: wall
    max_range: 10
    reload: 4
monsters:
  field: safest
`
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Arena.Width != 480 {
		t.Error("fields absent from the overlay should keep defaults")
	}
	if cfg.Goal.X != 0 {
		t.Errorf("overlay should move the goal, got %+v", cfg.Goal)
	}
	if len(cfg.Towers) != 1 {
		t.Fatalf("overlay list should replace the catalog, got %d towers", len(cfg.Towers))
	}
	wall := cfg.Towers[0]
	if wall.MinReload != 2 || wall.ReloadStep != 1 {
		t.Errorf("missing upgrade stats should be defaulted, got %+v", wall)
	}
	if len(cfg.Derived.Strategies) != 1 || cfg.Derived.Strategies[0] != components.StrategySafest {
		t.Errorf("unexpected strategies %v", cfg.Derived.Strategies)
	}
}

// TestLoadExplicitZeroReloadStep verifies an explicit reload_step of 0 is kept
// while an absent one is defaulted.
func TestLoadExplicitZeroReloadStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yaml")
	overlay := `
towers:
  - name: fixed
    max_range: 10
    reload: 4
    reload_step: 0
  - name: plain
    max_range: 10
    reload: 4
`
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fixed, _, _ := cfg.Tower("fixed")
	if fixed.ReloadStep != 0 {
		t.Errorf("explicit reload_step 0 should be kept, got %d", fixed.ReloadStep)
	}
	plain, _, _ := cfg.Tower("plain")
	if plain.ReloadStep != 1 || plain.MinReload != 2 {
		t.Errorf("absent keys should be defaulted, got %+v", plain)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero reload_step should validate: %v", err)
	}
}

// TestLoadErrors verifies missing files and unknown strategies are reported.
func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("monsters:\n  field: sideways\n"), 0644)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Errorf("expected unknown strategy error, got %v", err)
	}
}

// TestValidate verifies each invalid setting is rejected with a named error.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"goal outside", func(c *Config) { c.Goal.X = 481 }, "goal"},
		{"spawn outside", func(c *Config) { c.Monsters.SpawnY = -1 }, "spawn"},
		{"grid mismatch", func(c *Config) { c.Derived.Bounds.GridSize = 7 }, "arena"},
		{"negative epsilon", func(c *Config) { c.Fields.TieBreakEpsilon = -1 }, "epsilon"},
		{"zero epsilon", func(c *Config) { c.Fields.TieBreakEpsilon = 0 }, "epsilon"},
		{"inverted range", func(c *Config) { c.Towers[0].MinRange = 100 }, "range"},
		{"zero reload", func(c *Config) { c.Towers[0].Reload = 0 }, "reload"},
		{"unknown layout tower", func(c *Config) { c.Layout = []PlacementConfig{{Tower: "cannon"}} }, "cannon"},
		{"duplicate name", func(c *Config) {
			c.Towers[1].Name = c.Towers[0].Name
			c.Derived.TowerIndex[c.Towers[0].Name] = 1
		}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// TestWriteYAMLRoundTrip verifies a written config loads back unchanged.
func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Towers) != len(cfg.Towers) || len(again.Layout) != len(cfg.Layout) {
		t.Error("written config should reload to the same catalog and layout")
	}
}

// TestCfgBeforeInit verifies Cfg panics until Init has run.
func TestCfgBeforeInit(t *testing.T) {
	global = nil
	defer func() {
		if recover() == nil {
			t.Error("Cfg should panic before Init")
		}
	}()
	Cfg()
}
