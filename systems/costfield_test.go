package systems

import (
	"errors"
	"testing"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/components"
	"github.com/pthm-cable/towerfield/event"
)

// squareBlocker blocks every sample point in the listed grid squares.
func squareBlocker(b arena.Bounds, squares ...arena.Square) Blocker {
	set := make(map[arena.Square]bool, len(squares))
	for _, s := range squares {
		set[s] = true
	}
	return func(p arena.Position) bool { return set[b.SquareOf(p)] }
}

// TestDistanceFieldEmptyArena verifies the empty-arena distance field equals taxicab distance to the goal.
func TestDistanceFieldEmptyArena(t *testing.T) {
	goal := arenaBounds.MustPosition(480, 0)
	f := NewDistanceToGoalField(arenaBounds, []arena.Position{goal}, nil)
	stats := f.Recompute("init")

	if stats.Reachable != arenaBounds.Cells() {
		t.Errorf("expected every cell reachable, got %d of %d", stats.Reachable, arenaBounds.Cells())
	}
	if v, _ := f.Get(480, 0); v != 0 {
		t.Errorf("goal should be 0, got %d", v)
	}
	if v, _ := f.Get(0, 0); v != 480 {
		t.Errorf("expected 480 at (0,0), got %d", v)
	}
	if v, _ := f.Get(0, 480); v != 960 {
		t.Errorf("expected 960 at (0,480), got %d", v)
	}
	for _, p := range []arena.Position{{X: 17, Y: 233}, {X: 400, Y: 5}, {X: 479, Y: 479}} {
		if got, want := f.At(p), int32(arena.Taxicab(p, goal)); got != want {
			t.Errorf("%v: got %d, want taxicab %d", p, got, want)
		}
	}
}

// TestFieldStaleUntilRecompute verifies reads fail until a stale field is recomputed.
func TestFieldStaleUntilRecompute(t *testing.T) {
	f := NewDistanceToGoalField(smallBounds, []arena.Position{{X: 40, Y: 0}}, nil)
	if f.State() != StateStale {
		t.Fatalf("new field should be stale, got %s", f.State())
	}
	if _, err := f.Get(0, 0); !errors.Is(err, ErrFieldStale) {
		t.Errorf("expected ErrFieldStale, got %v", err)
	}
	if _, _, err := f.DescendTaxicab(0, 0); !errors.Is(err, ErrFieldStale) {
		t.Errorf("expected ErrFieldStale, got %v", err)
	}

	f.Recompute("init")
	if _, err := f.Get(0, 0); err != nil {
		t.Errorf("unexpected error after recompute: %v", err)
	}
	f.MarkStale()
	if _, err := f.Get(0, 0); !errors.Is(err, ErrFieldStale) {
		t.Errorf("expected ErrFieldStale after MarkStale, got %v", err)
	}
}

// TestBlockedCellsAreUnreachable verifies a wall forces the exact detour around its gap.
func TestBlockedCellsAreUnreachable(t *testing.T) {
	b := smallBounds
	// Wall across row 2 with a gap at column 0.
	blocked := squareBlocker(b, arena.Square{Col: 1, Row: 2}, arena.Square{Col: 2, Row: 2}, arena.Square{Col: 3, Row: 2})
	f := NewDistanceToGoalField(b, []arena.Position{{X: 40, Y: 0}}, blocked)
	f.Recompute("init")

	for _, p := range []arena.Position{{X: 15, Y: 25}, {X: 40, Y: 20}, {X: 29, Y: 29}} {
		if !f.IsUnreachable(f.At(p)) {
			t.Errorf("blocked cell %v should be unreachable, got %d", p, f.At(p))
		}
	}

	// (40,40) must detour left through the gap at x<=9: 31 + 40 + 31.
	if got := f.At(arena.Position{X: 40, Y: 40}); got != 102 {
		t.Errorf("expected detour cost 102, got %d", got)
	}
}

// TestEnclosedRegionUnreachable verifies cells sealed off by towers keep the sentinel.
func TestEnclosedRegionUnreachable(t *testing.T) {
	b := smallBounds
	// Seal the bottom-left square by blocking the squares above and beside it.
	blocked := squareBlocker(b, arena.Square{Col: 0, Row: 2}, arena.Square{Col: 1, Row: 3})
	f := NewDistanceToGoalField(b, []arena.Position{{X: 40, Y: 0}}, blocked)
	stats := f.Recompute("init")

	if !f.IsUnreachable(f.At(arena.Position{X: 5, Y: 35})) {
		t.Error("cell cut off from the goal should be unreachable")
	}
	if stats.Reachable >= b.Cells() {
		t.Errorf("reachable count should exclude sealed cells, got %d", stats.Reachable)
	}
	if _, ok, err := f.DescendTaxicab(5, 35); ok || err != nil {
		t.Errorf("unreachable cell should be a local minimum, ok=%v err=%v", ok, err)
	}
}

// checkDescent walks every reachable non-goal cell and verifies it has a
// strictly cheaper unblocked neighbour.
func checkDescent[T Number](t *testing.T, f *CostField[T], blocked Blocker) {
	t.Helper()
	b := f.Bounds()
	goals := make(map[arena.Position]bool)
	for _, g := range f.Goals() {
		goals[g] = true
	}
	for i, v := range f.Values() {
		p := b.PositionAt(i)
		if f.IsUnreachable(v) || goals[p] {
			continue
		}
		next, ok, err := f.DescendTaxicab(p.X, p.Y)
		if err != nil || !ok {
			t.Fatalf("%v: no descent (err=%v)", p, err)
		}
		if blocked != nil && blocked(next) && !goals[next] {
			t.Fatalf("%v: descended into blocked cell %v", p, next)
		}
		if f.At(next) >= v {
			t.Fatalf("%v: descent to %v is not strictly cheaper", p, next)
		}
	}
}

// TestMonotonicGradient verifies every reachable cell has a strictly cheaper neighbour.
func TestMonotonicGradient(t *testing.T) {
	b := smallBounds
	blocked := squareBlocker(b, arena.Square{Col: 1, Row: 1}, arena.Square{Col: 2, Row: 1}, arena.Square{Col: 2, Row: 2})
	goals := []arena.Position{{X: 40, Y: 0}}

	dist := NewDistanceToGoalField(b, goals, blocked)
	dist.Recompute("init")
	checkDescent(t, dist, blocked)

	density := NewDensityField(b)
	density.ApplyTower(+1, &components.Tower{MinRange: 0, MaxRange: 12, Reload: 2}, b.MustPosition(25, 35))
	attacks := NewAttacksToGoalField(b, goals, blocked, density, 0.001)
	attacks.Recompute("init")
	checkDescent(t, attacks, blocked)
}

// TestFIFOAndHeapAgreeOnUnitWeights verifies both frontiers produce the same unweighted field.
func TestFIFOAndHeapAgreeOnUnitWeights(t *testing.T) {
	b := smallBounds
	blocked := squareBlocker(b, arena.Square{Col: 1, Row: 0}, arena.Square{Col: 1, Row: 1}, arena.Square{Col: 3, Row: 2})
	goals := []arena.Position{{X: 40, Y: 0}, {X: 0, Y: 40}}
	unit := func(arena.Position) int32 { return 1 }

	fifo := NewCostField[int32]("fifo", b, goals, unit, blocked, Unreachable, FrontierFIFO)
	hp := NewCostField[int32]("heap", b, goals, unit, blocked, Unreachable, FrontierHeap)
	fifo.Recompute("init")
	hp.Recompute("init")

	for i := range fifo.Values() {
		if fifo.Values()[i] != hp.Values()[i] {
			t.Fatalf("cell %v: fifo %d, heap %d", b.PositionAt(i), fifo.Values()[i], hp.Values()[i])
		}
	}
}

// TestAttacksFieldAvoidsTowers verifies descent on the attacks field stays out of tower range.
func TestAttacksFieldAvoidsTowers(t *testing.T) {
	b := arena.Bounds{Width: 80, Height: 40, GridSize: 10}
	goals := []arena.Position{{X: 80, Y: 0}}
	density := NewDensityField(b)
	f := NewAttacksToGoalField(b, goals, nil, density, 0.001)

	f.Recompute("init")
	if v, _ := f.Get(0, 0); v < 0.0799 || v > 0.0801 {
		t.Errorf("empty overlay should cost epsilon per step, got %v", v)
	}

	// A tower covering the top row makes every cheapest path skirt its disk.
	density.ApplyTower(+1, &components.Tower{MinRange: 0, MaxRange: 15, Reload: 1}, b.MustPosition(40, 0))
	f.Recompute("tower")
	if v, _ := f.Get(20, 0); v >= 1 {
		t.Fatalf("a tower-free detour exists, got cost %v", v)
	}

	p := b.MustPosition(20, 0)
	for steps := 0; ; steps++ {
		if density.At(p) != 0 {
			t.Fatalf("descent entered tower range at %v", p)
		}
		next, ok, err := f.DescendTaxicab(p.X, p.Y)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if steps > b.Cells() {
			t.Fatal("descent did not terminate")
		}
		p = next
	}
	if p != goals[0] {
		t.Errorf("descent stopped at %v, want goal %v", p, goals[0])
	}
}

// TestPlaceRemoveRestoresField verifies undoing a tower restores the previous field.
func TestPlaceRemoveRestoresField(t *testing.T) {
	b := smallBounds
	goals := []arena.Position{{X: 40, Y: 0}}
	density := NewDensityField(b)
	f := NewAttacksToGoalField(b, goals, nil, density, 0.001)
	f.Recompute("init")
	before := append([]float64(nil), f.Values()...)

	tower := &components.Tower{MinRange: 2, MaxRange: 9, Reload: 3}
	c := b.MustPosition(20, 20)
	density.ApplyTower(+1, tower, c)
	f.Recompute("add")
	density.ApplyTower(-1, tower, c)
	f.Recompute("remove")

	for i, v := range f.Values() {
		if d := v - before[i]; d > 1e-9 || d < -1e-9 {
			t.Fatalf("cell %v drifted by %v", b.PositionAt(i), d)
		}
	}
}

// TestRecomputeOnHandler verifies a channel handler rebuilds the field with the channel as reason.
func TestRecomputeOnHandler(t *testing.T) {
	f := NewDistanceToGoalField(smallBounds, []arena.Position{{X: 40, Y: 0}}, nil)
	var seen []RecomputeStats
	f.SetRecomputeHook(func(s RecomputeStats) { seen = append(seen, s) })

	ch := event.NewChannel[int]("ping")
	ch.Subscribe(RecomputeOn[int](f, "ping"))
	if err := ch.Publish(nil, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.State() != StateConsistent {
		t.Error("field should be consistent after the handler runs")
	}
	if len(seen) != 1 || seen[0].Reason != "ping" || seen[0].Field != "distance_to_goal" {
		t.Errorf("unexpected recompute stats %+v", seen)
	}
}
