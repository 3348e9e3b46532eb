package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/components"
)

const (
	// annulusEpsilon widens the squared-radius comparison so lattice points
	// lying exactly on a ring boundary are included.
	annulusEpsilon = 1e-9

	// snapEpsilon clears residue left when equal increments cancel.
	snapEpsilon = 1e-9
)

// DensityField accumulates tower attacks per frame at every cell.
// Each cell holds the sum of 1/reload over the towers whose range annulus
// covers it. Updates are incremental: O(annulus area), not O(arena).
type DensityField struct {
	*Field[float64]
}

// NewDensityField creates an all-zero overlay.
func NewDensityField(bounds arena.Bounds) *DensityField {
	return &DensityField{Field: NewField[float64](bounds)}
}

// IncrementAnnulus adds amount to every cell whose Euclidean distance from
// center lies in [minRadius, maxRadius], clipped to the arena.
// Returns the number of cells changed.
func (d *DensityField) IncrementAnnulus(amount float64, center arena.Position, minRadius, maxRadius float64) int {
	if minRadius < 0 || maxRadius < minRadius {
		panic(fmt.Sprintf("systems: invalid annulus [%v, %v]", minRadius, maxRadius))
	}
	b := d.bounds
	if !b.Contains(center.X, center.Y) {
		panic(fmt.Sprintf("systems: annulus center %v outside arena", center))
	}

	reach := int(math.Floor(maxRadius + annulusEpsilon))
	x0, x1 := max(0, center.X-reach), min(b.Width, center.X+reach)
	y0, y1 := max(0, center.Y-reach), min(b.Height, center.Y+reach)

	minSq := minRadius*minRadius - annulusEpsilon
	maxSq := maxRadius*maxRadius + annulusEpsilon

	// Outer loop along the shorter side of the clipped box; the inner loop
	// covers only the outer circle's chord at that offset.
	touched := 0
	if x1-x0 <= y1-y0 {
		for x := x0; x <= x1; x++ {
			dx := float64(x - center.X)
			half := chord(maxSq, dx)
			if half < 0 {
				continue
			}
			for y := max(y0, center.Y-half); y <= min(y1, center.Y+half); y++ {
				dy := float64(y - center.Y)
				if distSq := dx*dx + dy*dy; distSq >= minSq && distSq <= maxSq {
					d.add(y*(b.Width+1)+x, amount)
					touched++
				}
			}
		}
		return touched
	}

	for y := y0; y <= y1; y++ {
		dy := float64(y - center.Y)
		half := chord(maxSq, dy)
		if half < 0 {
			continue
		}
		row := y * (b.Width + 1)
		for x := max(x0, center.X-half); x <= min(x1, center.X+half); x++ {
			dx := float64(x - center.X)
			if distSq := dx*dx + dy*dy; distSq >= minSq && distSq <= maxSq {
				d.add(row+x, amount)
				touched++
			}
		}
	}
	return touched
}

// ApplyTower adds (sign=+1) or removes (sign=-1) a tower's contribution.
func (d *DensityField) ApplyTower(sign float64, t *components.Tower, center arena.Position) int {
	return d.IncrementAnnulus(sign*t.AttacksPerFrame(), center, float64(t.MinRange), float64(t.MaxRange))
}

// Total returns the sum of all cells.
func (d *DensityField) Total() float64 { return floats.Sum(d.values) }

// Max returns the largest cell value.
func (d *DensityField) Max() float64 { return floats.Max(d.values) }

func (d *DensityField) add(idx int, amount float64) {
	v := d.values[idx] + amount
	if math.Abs(v) < snapEpsilon {
		v = 0
	}
	d.values[idx] = v
}

// chord returns the integer half-length of the circle chord at offset off,
// or -1 if the offset lies outside the circle.
func chord(radiusSq, off float64) int {
	rem := radiusSq - off*off
	if rem < 0 {
		return -1
	}
	return int(math.Floor(math.Sqrt(rem)))
}
