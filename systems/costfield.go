package systems

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/event"
)

// ErrFieldStale is returned when a cost field is queried before it has been
// recomputed against the latest layout.
var ErrFieldStale = errors.New("cost field is stale")

// EdgeWeight returns the cost of stepping into a cell.
type EdgeWeight[T Number] func(to arena.Position) T

// Blocker reports whether a cell may not be entered.
type Blocker func(p arena.Position) bool

// FrontierKind selects the queue discipline used during propagation.
type FrontierKind uint8

const (
	// FrontierFIFO is breadth-first; exact when every step costs the same.
	FrontierFIFO FrontierKind = iota
	// FrontierHeap pops the cheapest cell first (Dijkstra with re-insertion).
	FrontierHeap
)

// FieldState is the lifecycle state of a cost field.
type FieldState uint8

const (
	StateStale FieldState = iota
	StateConsistent
)

func (s FieldState) String() string {
	if s == StateConsistent {
		return "consistent"
	}
	return "stale"
}

// RecomputeStats describes one full propagation.
type RecomputeStats struct {
	Field     string
	Reason    string
	Pops      int // frontier entries processed, including stale heap entries
	Reachable int // cells holding a finite cost
	Duration  time.Duration
}

// CostField holds the minimum cost from every cell to the goal region,
// computed by propagating backwards from the goal over taxicab steps that
// avoid blocked cells. Unreachable cells hold the sentinel value.
//
// Only Recompute writes the values; callers get read access.
type CostField[T Number] struct {
	name        string
	field       *Field[T]
	goals       []arena.Position
	weight      EdgeWeight[T]
	blocked     Blocker
	unreachable T
	frontier    FrontierKind
	state       FieldState

	// Reusable frontier storage (cleared between recomputes)
	queue []int
	head  int
	open  costHeap[T]

	onRecompute func(RecomputeStats)
}

// NewCostField creates a stale cost field. Call Recompute before querying it.
func NewCostField[T Number](name string, bounds arena.Bounds, goals []arena.Position, weight EdgeWeight[T], blocked Blocker, unreachable T, frontier FrontierKind) *CostField[T] {
	if len(goals) == 0 {
		panic("systems: cost field needs at least one goal cell")
	}
	if blocked == nil {
		blocked = func(arena.Position) bool { return false }
	}
	return &CostField[T]{
		name:        name,
		field:       NewField[T](bounds),
		goals:       append([]arena.Position(nil), goals...),
		weight:      weight,
		blocked:     blocked,
		unreachable: unreachable,
		frontier:    frontier,
		state:       StateStale,
		queue:       make([]int, 0, bounds.Cells()/4),
	}
}

// Unreachable is the sentinel max value used for distances.
const Unreachable int32 = math.MaxInt32

// UnreachableCost is the sentinel max value used for weighted costs.
const UnreachableCost float64 = math.MaxFloat64

// NewDistanceToGoalField creates the unweighted field: every step costs 1.
func NewDistanceToGoalField(bounds arena.Bounds, goals []arena.Position, blocked Blocker) *CostField[int32] {
	unit := func(arena.Position) int32 { return 1 }
	return NewCostField[int32]("distance_to_goal", bounds, goals, unit, blocked, Unreachable, FrontierFIFO)
}

// NewAttacksToGoalField creates the field weighted by tower density.
// Stepping into c costs density(c) + epsilon; epsilon keeps zero-density
// regions from forming plateaus and biases ties toward shorter paths.
func NewAttacksToGoalField(bounds arena.Bounds, goals []arena.Position, blocked Blocker, density *DensityField, epsilon float64) *CostField[float64] {
	w := func(p arena.Position) float64 { return density.At(p) + epsilon }
	return NewCostField[float64]("attacks_to_goal", bounds, goals, w, blocked, UnreachableCost, FrontierHeap)
}

// Name returns the field's identifier.
func (c *CostField[T]) Name() string { return c.name }

// State returns the lifecycle state.
func (c *CostField[T]) State() FieldState { return c.state }

// Goals returns the goal cells.
func (c *CostField[T]) Goals() []arena.Position { return c.goals }

// Bounds returns the arena bounds.
func (c *CostField[T]) Bounds() arena.Bounds { return c.field.bounds }

// Values returns the row-major values. Callers must not modify them.
func (c *CostField[T]) Values() []T { return c.field.values }

// UnreachableValue returns the sentinel.
func (c *CostField[T]) UnreachableValue() T { return c.unreachable }

// IsUnreachable reports whether v is the sentinel.
func (c *CostField[T]) IsUnreachable(v T) bool { return v == c.unreachable }

// SetRecomputeHook registers fn to receive stats after every recompute.
func (c *CostField[T]) SetRecomputeHook(fn func(RecomputeStats)) { c.onRecompute = fn }

// MarkStale flags the field as out of date with the layout.
func (c *CostField[T]) MarkStale() { c.state = StateStale }

// Get returns the cost at (x, y).
func (c *CostField[T]) Get(x, y int) (T, error) {
	if c.state != StateConsistent {
		var zero T
		return zero, fmt.Errorf("%s: %w", c.name, ErrFieldStale)
	}
	return c.field.Get(x, y)
}

// At returns the cost at a validated position without state checks.
func (c *CostField[T]) At(p arena.Position) T { return c.field.At(p) }

// DescendTaxicab returns the strictly cheaper neighbour a monster at (x, y)
// should step to next, or ok=false at a local minimum.
func (c *CostField[T]) DescendTaxicab(x, y int) (arena.Position, bool, error) {
	if c.state != StateConsistent {
		return arena.Position{}, false, fmt.Errorf("%s: %w", c.name, ErrFieldStale)
	}
	return c.field.DescendTaxicab(x, y)
}

// TaxicabNeighbors appends the clipped axis neighbours of p to dst.
func (c *CostField[T]) TaxicabNeighbors(dst []arena.Position, p arena.Position) []arena.Position {
	return c.field.TaxicabNeighbors(dst, p)
}

// Recompute rebuilds the whole field from the goal region.
func (c *CostField[T]) Recompute(reason string) RecomputeStats {
	start := time.Now()
	f := c.field
	b := f.bounds

	f.Fill(c.unreachable)

	var zero T
	reachable := 0
	c.queue = c.queue[:0]
	c.head = 0
	c.open = c.open[:0]
	for _, g := range c.goals {
		idx := b.Index(g)
		if f.values[idx] != zero {
			reachable++
		}
		f.values[idx] = zero
		c.push(idx, zero)
	}

	pops := 0
	var buf [4]arena.Position
	for {
		idx, cost, ok := c.pop()
		if !ok {
			break
		}
		pops++
		if cost > f.values[idx] {
			continue // superseded by a cheaper entry
		}
		current := b.PositionAt(idx)
		for _, n := range taxicabNeighbors(buf[:0], b, current) {
			if c.blocked(n) {
				continue
			}
			nIdx := b.Index(n)
			candidate := cost + c.weight(n)
			if candidate < f.values[nIdx] {
				if f.values[nIdx] == c.unreachable {
					reachable++
				}
				f.values[nIdx] = candidate
				c.push(nIdx, candidate)
			}
		}
	}

	c.state = StateConsistent
	stats := RecomputeStats{
		Field:     c.name,
		Reason:    reason,
		Pops:      pops,
		Reachable: reachable,
		Duration:  time.Since(start),
	}
	if c.onRecompute != nil {
		c.onRecompute(stats)
	}
	return stats
}

func (c *CostField[T]) push(idx int, cost T) {
	if c.frontier == FrontierFIFO {
		c.queue = append(c.queue, idx)
		return
	}
	heap.Push(&c.open, costEntry[T]{idx: idx, cost: cost})
}

func (c *CostField[T]) pop() (int, T, bool) {
	if c.frontier == FrontierFIFO {
		if c.head >= len(c.queue) {
			var zero T
			return 0, zero, false
		}
		idx := c.queue[c.head]
		c.head++
		// FIFO entries carry no cost snapshot; the current value is exact.
		return idx, c.field.values[idx], true
	}
	if c.open.Len() == 0 {
		var zero T
		return 0, zero, false
	}
	e := heap.Pop(&c.open).(costEntry[T])
	return e.idx, e.cost, true
}

// costEntry is a frontier cell in the heap.
type costEntry[T Number] struct {
	idx  int
	cost T
}

// costHeap implements heap.Interface ordered by cost.
type costHeap[T Number] []costEntry[T]

func (h costHeap[T]) Len() int           { return len(h) }
func (h costHeap[T]) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h costHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *costHeap[T]) Push(x any) { *h = append(*h, x.(costEntry[T])) }

func (h *costHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Recomputer is a field that can be invalidated and rebuilt.
type Recomputer interface {
	MarkStale()
	Recompute(reason string) RecomputeStats
}

// RecomputeOn returns a handler that marks f stale and rebuilds it whenever
// an event of type A is published.
func RecomputeOn[A any](f Recomputer, reason string) *event.Handler[A] {
	return event.NewHandler(func(any, A) error {
		f.MarkStale()
		f.Recompute(reason)
		return nil
	})
}
