// Package arena defines the coordinate space shared by every field and index.
package arena

import (
	"errors"
	"fmt"
)

// ErrInvalidPosition is returned when a coordinate falls outside the arena.
var ErrInvalidPosition = errors.New("position out of arena bounds")

// Bounds describes the arena extents.
// Sample points run over [0,Width] x [0,Height] inclusive, so a field over
// the arena has (Width+1)*(Height+1) cells. GridSize is the side of the square
// placement grid used to bucket obstacles.
type Bounds struct {
	Width    int
	Height   int
	GridSize int
}

// Position is a validated sample point inside the arena.
type Position struct {
	X, Y int
}

// Square identifies a placement grid square by column and row.
type Square struct {
	Col, Row int
}

// Validate checks that the bounds describe a usable arena.
func (b Bounds) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("arena extents must be positive, got %dx%d", b.Width, b.Height)
	}
	if b.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", b.GridSize)
	}
	if b.Width%b.GridSize != 0 || b.Height%b.GridSize != 0 {
		return fmt.Errorf("grid size %d does not divide arena %dx%d", b.GridSize, b.Width, b.Height)
	}
	return nil
}

// Contains reports whether (x, y) lies inside the arena.
func (b Bounds) Contains(x, y int) bool {
	return x >= 0 && x <= b.Width && y >= 0 && y <= b.Height
}

// NewPosition validates (x, y) against the bounds.
func (b Bounds) NewPosition(x, y int) (Position, error) {
	if !b.Contains(x, y) {
		return Position{}, fmt.Errorf("(%d, %d) outside [0,%d]x[0,%d]: %w", x, y, b.Width, b.Height, ErrInvalidPosition)
	}
	return Position{X: x, Y: y}, nil
}

// MustPosition is like NewPosition but panics on error.
// Intended for constants and tests.
func (b Bounds) MustPosition(x, y int) Position {
	p, err := b.NewPosition(x, y)
	if err != nil {
		panic(err)
	}
	return p
}

// Stride returns the row length of a dense field over the arena.
func (b Bounds) Stride() int { return b.Width + 1 }

// Cells returns the number of sample points in the arena.
func (b Bounds) Cells() int { return (b.Width + 1) * (b.Height + 1) }

// Index returns the row-major flat index of p.
func (b Bounds) Index(p Position) int { return p.Y*(b.Width+1) + p.X }

// PositionAt is the inverse of Index.
func (b Bounds) PositionAt(idx int) Position {
	stride := b.Width + 1
	return Position{X: idx % stride, Y: idx / stride}
}

// Columns returns the number of placement grid columns.
func (b Bounds) Columns() int { return b.Width / b.GridSize }

// Rows returns the number of placement grid rows.
func (b Bounds) Rows() int { return b.Height / b.GridSize }

// SquareOf returns the grid square containing p.
// Points on the far edge belong to the last column/row.
func (b Bounds) SquareOf(p Position) Square {
	return Square{
		Col: min(p.X/b.GridSize, b.Columns()-1),
		Row: min(p.Y/b.GridSize, b.Rows()-1),
	}
}

// SquareCenter returns the sample point at the center of a grid square.
func (b Bounds) SquareCenter(sq Square) Position {
	half := b.GridSize / 2
	return Position{X: sq.Col*b.GridSize + half, Y: sq.Row*b.GridSize + half}
}

// SquareIndex returns the flat index of a grid square.
func (b Bounds) SquareIndex(sq Square) int { return sq.Row*b.Columns() + sq.Col }

// Taxicab returns the Manhattan distance between two positions.
func Taxicab(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
