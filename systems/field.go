package systems

import (
	"golang.org/x/exp/constraints"

	"github.com/pthm-cable/towerfield/arena"
)

// Number is any totally ordered numeric type usable as a field value.
type Number interface {
	constraints.Integer | constraints.Float
}

// Field is a dense scalar grid over every sample point of the arena.
type Field[T Number] struct {
	bounds arena.Bounds
	values []T
}

// NewField allocates a zero-valued field.
func NewField[T Number](bounds arena.Bounds) *Field[T] {
	return &Field[T]{
		bounds: bounds,
		values: make([]T, bounds.Cells()),
	}
}

// Bounds returns the arena bounds.
func (f *Field[T]) Bounds() arena.Bounds { return f.bounds }

// Values returns the backing slice in row-major order. Callers must not modify it.
func (f *Field[T]) Values() []T { return f.values }

// Get returns the value at (x, y).
func (f *Field[T]) Get(x, y int) (T, error) {
	p, err := f.bounds.NewPosition(x, y)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.values[f.bounds.Index(p)], nil
}

// Set stores v at (x, y).
func (f *Field[T]) Set(x, y int, v T) error {
	p, err := f.bounds.NewPosition(x, y)
	if err != nil {
		return err
	}
	f.values[f.bounds.Index(p)] = v
	return nil
}

// At returns the value at an already validated position.
func (f *Field[T]) At(p arena.Position) T { return f.values[f.bounds.Index(p)] }

// Put stores v at an already validated position.
func (f *Field[T]) Put(p arena.Position, v T) { f.values[f.bounds.Index(p)] = v }

// Fill sets every cell to v.
func (f *Field[T]) Fill(v T) {
	for i := range f.values {
		f.values[i] = v
	}
}

// TaxicabNeighbors appends the up-to-four axis neighbours of p to dst,
// clipped to the arena, in the order left, right, up, down.
func (f *Field[T]) TaxicabNeighbors(dst []arena.Position, p arena.Position) []arena.Position {
	return taxicabNeighbors(dst, f.bounds, p)
}

// DescendTaxicab returns the neighbour of (x, y) with the lowest value that
// is strictly below the value at (x, y). Ties keep the first neighbour in
// left, right, up, down order. ok is false at a local minimum.
func (f *Field[T]) DescendTaxicab(x, y int) (next arena.Position, ok bool, err error) {
	p, err := f.bounds.NewPosition(x, y)
	if err != nil {
		return arena.Position{}, false, err
	}
	next, ok = f.descend(p)
	return next, ok, nil
}

func (f *Field[T]) descend(p arena.Position) (arena.Position, bool) {
	var buf [4]arena.Position
	lowest := f.At(p)
	var best arena.Position
	found := false
	for _, n := range taxicabNeighbors(buf[:0], f.bounds, p) {
		if v := f.At(n); v < lowest {
			lowest = v
			best = n
			found = true
		}
	}
	return best, found
}

func taxicabNeighbors(dst []arena.Position, b arena.Bounds, p arena.Position) []arena.Position {
	if p.X > 0 {
		dst = append(dst, arena.Position{X: p.X - 1, Y: p.Y})
	}
	if p.X < b.Width {
		dst = append(dst, arena.Position{X: p.X + 1, Y: p.Y})
	}
	if p.Y > 0 {
		dst = append(dst, arena.Position{X: p.X, Y: p.Y - 1})
	}
	if p.Y < b.Height {
		dst = append(dst, arena.Position{X: p.X, Y: p.Y + 1})
	}
	return dst
}
