package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/towerfield/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir           string
	recomputeFile *os.File
	monsterFile   *os.File

	// Track if headers have been written
	recomputeHeaderWritten bool
	monsterHeaderWritten   bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "recompute.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating recompute.csv: %w", err)
	}
	om.recomputeFile = f

	f, err = os.Create(filepath.Join(dir, "monsters.csv"))
	if err != nil {
		om.recomputeFile.Close()
		return nil, fmt.Errorf("creating monsters.csv: %w", err)
	}
	om.monsterFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRecompute appends a record to recompute.csv.
func (om *OutputManager) WriteRecompute(r RecomputeRecord) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.recomputeFile, []RecomputeRecord{r}, &om.recomputeHeaderWritten); err != nil {
		return fmt.Errorf("writing recompute: %w", err)
	}
	return nil
}

// WriteMonster appends a record to monsters.csv.
func (om *OutputManager) WriteMonster(r MonsterRecord) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.monsterFile, []MonsterRecord{r}, &om.monsterHeaderWritten); err != nil {
		return fmt.Errorf("writing monster: %w", err)
	}
	return nil
}

// WriteField dumps every cell of a field to field_<name>.csv.
func (om *OutputManager) WriteField(name string, cells []FieldCell) error {
	if om == nil {
		return nil
	}
	path := filepath.Join(om.dir, "field_"+name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := gocsv.MarshalFile(&cells, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteSummaries writes field summaries to summary.csv.
func (om *OutputManager) WriteSummaries(summaries []FieldSummary) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "summary.csv"))
	if err != nil {
		return fmt.Errorf("creating summary.csv: %w", err)
	}
	if err := gocsv.MarshalFile(&summaries, f); err != nil {
		f.Close()
		return fmt.Errorf("writing summary: %w", err)
	}
	return f.Close()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.recomputeFile, om.monsterFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// appendCSV writes records, including the header only on the first call.
func appendCSV[T any](f *os.File, records []T, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}
