// Field preview tool - prints a coarse text heatmap of a cost field for the
// configured layout.
//
// Usage: go run ./cmd/fieldpreview -field attacks -step 20
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/config"
	"github.com/pthm-cable/towerfield/game"
	"github.com/pthm-cable/towerfield/telemetry"
)

// ramp runs from cheap to expensive.
const ramp = " .:-=+*#%@"

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	field := flag.String("field", "distance", "Field to preview: distance, attacks or density")
	step := flag.Int("step", 20, "Sample spacing in pixels")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	s, err := game.NewSession(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		slog.Error("failed to build session", "error", err)
		os.Exit(1)
	}
	for i, p := range cfg.Layout {
		e, err := s.PlaceTower(p.Tower, p.X, p.Y)
		if err != nil {
			slog.Error("layout placement failed", "layout", i, "error", err)
			os.Exit(1)
		}
		for u := 0; u < p.Upgrades; u++ {
			if s.UpgradeTower(e) != nil {
				break
			}
		}
	}

	if err := preview(os.Stdout, s, *field, *step); err != nil {
		slog.Error("preview failed", "error", err)
		os.Exit(1)
	}
}

// preview writes one character per sampled cell, then a summary line.
func preview(w io.Writer, s *game.Session, field string, step int) error {
	if step <= 0 {
		return fmt.Errorf("step must be positive, got %d", step)
	}
	b := s.Bounds()

	var cells []telemetry.FieldCell
	switch field {
	case "distance":
		d := s.Distance()
		cells = telemetry.FieldCells(b, d.Values(), d.IsUnreachable)
		fmt.Fprintf(w, "%v\n", telemetry.Summarize(d))
	case "attacks":
		a := s.Attacks()
		cells = telemetry.FieldCells(b, a.Values(), a.IsUnreachable)
		fmt.Fprintf(w, "%v\n", telemetry.Summarize(a))
	case "density":
		cells = telemetry.FieldCells(b, s.Density().Values(), nil)
		fmt.Fprintf(w, "density total=%.3f max=%.3f\n", s.Density().Total(), s.Density().Max())
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	// Normalise against the largest finite sample
	var maxVal float64
	for _, c := range cells {
		if c.Reachable && c.Value > maxVal {
			maxVal = c.Value
		}
	}

	goal := s.Goal()
	for y := 0; y <= b.Height; y += step {
		row := make([]byte, 0, b.Width/step+1)
		for x := 0; x <= b.Width; x += step {
			p := arena.Position{X: x, Y: y}
			c := cells[b.Index(p)]
			switch {
			case arena.Taxicab(p, goal) < step:
				row = append(row, 'G')
			case !c.Reachable:
				row = append(row, 'X')
			default:
				row = append(row, shade(c.Value, maxVal))
			}
		}
		if _, err := fmt.Fprintln(w, string(row)); err != nil {
			return err
		}
	}
	return nil
}

// shade maps v in [0, maxVal] onto the ramp.
func shade(v, maxVal float64) byte {
	if maxVal <= 0 {
		return ramp[0]
	}
	i := int(v / maxVal * float64(len(ramp)-1))
	return ramp[min(max(i, 0), len(ramp)-1)]
}
