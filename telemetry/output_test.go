package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/towerfield/config"
)

// TestOutputManagerDisabled verifies a nil manager accepts every write.
func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v, %v", om, err)
	}
	// Every method is nil-safe.
	if err := om.WriteRecompute(RecomputeRecord{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteMonster(MonsterRecord{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteField("x", nil); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager should report empty dir")
	}
}

// TestOutputManagerWrites verifies each CSV reads back through gocsv.
func TestOutputManagerWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := om.WriteRecompute(RecomputeRecord{Tick: i, Field: "distance_to_goal", Pops: 10 + i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteMonster(MonsterRecord{ID: 4, Strategy: "safest", Outcome: "arrived", Steps: 960}); err != nil {
		t.Fatal(err)
	}
	cells := []FieldCell{{X: 0, Y: 0, Value: 3, Reachable: true}, {X: 1, Y: 0, Value: -1}}
	if err := om.WriteField("distance_to_goal", cells); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	var recs []RecomputeRecord
	readCSV(t, filepath.Join(dir, "recompute.csv"), &recs)
	if len(recs) != 3 || recs[2].Pops != 12 || recs[0].Field != "distance_to_goal" {
		t.Errorf("header should be written once, got %+v", recs)
	}

	var monsters []MonsterRecord
	readCSV(t, filepath.Join(dir, "monsters.csv"), &monsters)
	if len(monsters) != 1 || monsters[0].Steps != 960 {
		t.Errorf("unexpected monsters %+v", monsters)
	}

	var back []FieldCell
	readCSV(t, filepath.Join(dir, "field_distance_to_goal.csv"), &back)
	if len(back) != 2 || back[1].Reachable || back[0].Value != 3 {
		t.Errorf("unexpected field dump %+v", back)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml should exist: %v", err)
	}
}

func readCSV(t *testing.T, path string, out any) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
}
