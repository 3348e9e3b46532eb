package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/systems"
)

// RecomputeRecord is one cost field recompute, as written to recompute.csv.
type RecomputeRecord struct {
	Tick       int    `csv:"tick"`
	Field      string `csv:"field"`
	Reason     string `csv:"reason"`
	Pops       int    `csv:"pops"`
	Reachable  int    `csv:"reachable"`
	DurationUS int64  `csv:"duration_us"`
}

// NewRecomputeRecord converts field stats observed at tick.
func NewRecomputeRecord(tick int, s systems.RecomputeStats) RecomputeRecord {
	return RecomputeRecord{
		Tick:       tick,
		Field:      s.Field,
		Reason:     s.Reason,
		Pops:       s.Pops,
		Reachable:  s.Reachable,
		DurationUS: s.Duration.Microseconds(),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (r RecomputeRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", r.Tick),
		slog.String("field", r.Field),
		slog.String("reason", r.Reason),
		slog.Int("pops", r.Pops),
		slog.Int("reachable", r.Reachable),
		slog.Int64("duration_us", r.DurationUS),
	)
}

// MonsterRecord is one finished monster, as written to monsters.csv.
type MonsterRecord struct {
	Tick     int     `csv:"tick"`
	ID       uint32  `csv:"id"`
	Strategy string  `csv:"strategy"`
	Outcome  string  `csv:"outcome"`
	X        int     `csv:"x"`
	Y        int     `csv:"y"`
	Steps    int     `csv:"steps"`
	Exposure float64 `csv:"exposure"` // summed attacks per frame over cells entered
}

// FieldCell is one sample point in a field dump.
type FieldCell struct {
	X         int     `csv:"x"`
	Y         int     `csv:"y"`
	Value     float64 `csv:"value"`
	Reachable bool    `csv:"reachable"`
}

// FieldCells flattens values over b into dump rows. unreachable may be nil.
func FieldCells[T systems.Number](b arena.Bounds, values []T, unreachable func(T) bool) []FieldCell {
	cells := make([]FieldCell, len(values))
	for i, v := range values {
		p := b.PositionAt(i)
		reachable := unreachable == nil || !unreachable(v)
		value := float64(v)
		if !reachable {
			value = -1
		}
		cells[i] = FieldCell{X: p.X, Y: p.Y, Value: value, Reachable: reachable}
	}
	return cells
}

// FieldSummary describes the distribution of finite costs in a field.
type FieldSummary struct {
	Field       string  `csv:"field"`
	Reachable   int     `csv:"reachable"`
	Unreachable int     `csv:"unreachable"`
	Mean        float64 `csv:"mean"`
	P50         float64 `csv:"p50"`
	P90         float64 `csv:"p90"`
	Max         float64 `csv:"max"`
}

// Summarize computes distribution stats over the reachable cells of f.
func Summarize[T systems.Number](f *systems.CostField[T]) FieldSummary {
	values := f.Values()
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !f.IsUnreachable(v) {
			finite = append(finite, float64(v))
		}
	}
	s := FieldSummary{
		Field:       f.Name(),
		Reachable:   len(finite),
		Unreachable: len(values) - len(finite),
	}
	if len(finite) == 0 {
		return s
	}
	sort.Float64s(finite)
	s.Mean = stat.Mean(finite, nil)
	s.P50 = stat.Quantile(0.5, stat.Empirical, finite, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, finite, nil)
	s.Max = finite[len(finite)-1]
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("field", s.Field),
		slog.Int("reachable", s.Reachable),
		slog.Int("unreachable", s.Unreachable),
		slog.Float64("mean", s.Mean),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("max", s.Max),
	)
}
