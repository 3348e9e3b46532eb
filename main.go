package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pthm-cable/towerfield/config"
	"github.com/pthm-cable/towerfield/game"
	"github.com/pthm-cable/towerfield/systems"
	"github.com/pthm-cable/towerfield/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	maxTicks := flag.Int("max-ticks", 5000, "Stop after N monster steps even if monsters remain")
	dumpFields := flag.Bool("dump-fields", false, "Write every field cell to field_<name>.csv at the end of the run")
	debug := flag.Bool("debug", false, "Log every field recompute")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *dumpFields {
		cfg.Telemetry.DumpFields = true
	}

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, *maxTicks); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run replays the configured layout, walks the monsters to completion and
// writes telemetry.
func run(cfg *config.Config, logger *slog.Logger, maxTicks int) error {
	om, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	s, err := game.NewSession(cfg, logger)
	if err != nil {
		return err
	}
	s.OnRecompute(func(stats systems.RecomputeStats) {
		if err := om.WriteRecompute(telemetry.NewRecomputeRecord(s.Tick(), stats)); err != nil {
			slog.Error("failed to write recompute", "error", err)
		}
	})

	for i, p := range cfg.Layout {
		e, err := s.PlaceTower(p.Tower, p.X, p.Y)
		if err != nil {
			return fmt.Errorf("layout[%d]: %w", i, err)
		}
		for u := 0; u < p.Upgrades; u++ {
			if err := s.UpgradeTower(e); err != nil {
				slog.Warn("upgrade skipped", "layout", i, "tower", p.Tower, "error", err)
				break
			}
		}
	}

	for _, strategy := range cfg.Derived.Strategies {
		for i := 0; i < cfg.Monsters.Count; i++ {
			if _, err := s.SpawnMonster(cfg.Monsters.SpawnX, cfg.Monsters.SpawnY, strategy); err != nil {
				return fmt.Errorf("spawning monster: %w", err)
			}
		}
	}

	slog.Info("starting run",
		"towers", len(s.Towers()),
		"monsters", s.Monsters(),
		"max_ticks", maxTicks,
	)

	for s.Monsters() > 0 {
		if maxTicks > 0 && s.Tick() >= maxTicks {
			slog.Warn("max ticks reached", "tick", s.Tick(), "remaining", s.Monsters())
			break
		}
		for _, o := range s.StepMonsters() {
			rec := telemetry.MonsterRecord{
				Tick:     o.Tick,
				ID:       o.ID,
				Strategy: o.Strategy.String(),
				Outcome:  o.Outcome.String(),
				X:        o.Position.X,
				Y:        o.Position.Y,
				Steps:    o.Steps,
				Exposure: o.Exposure,
			}
			slog.Info("monster finished",
				"id", rec.ID,
				"strategy", rec.Strategy,
				"outcome", rec.Outcome,
				"steps", rec.Steps,
				"exposure", rec.Exposure,
			)
			if err := om.WriteMonster(rec); err != nil {
				return err
			}
		}
	}

	summaries := []telemetry.FieldSummary{
		telemetry.Summarize(s.Distance()),
		telemetry.Summarize(s.Attacks()),
	}
	for _, sum := range summaries {
		slog.Info("field summary", "summary", sum)
	}
	if err := om.WriteSummaries(summaries); err != nil {
		return err
	}

	if cfg.Telemetry.DumpFields {
		b := s.Bounds()
		dumps := map[string][]telemetry.FieldCell{
			s.Distance().Name(): telemetry.FieldCells(b, s.Distance().Values(), s.Distance().IsUnreachable),
			s.Attacks().Name():  telemetry.FieldCells(b, s.Attacks().Values(), s.Attacks().IsUnreachable),
			"density":           telemetry.FieldCells(b, s.Density().Values(), nil),
		}
		for name, cells := range dumps {
			if err := om.WriteField(name, cells); err != nil {
				return err
			}
		}
	}

	slog.Info("run complete", "tick", s.Tick(), "output_dir", om.Dir())
	return nil
}
