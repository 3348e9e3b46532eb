// Package systems provides the arena's spatial index and scalar fields.
package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/towerfield/arena"
)

// Kind classifies occupants of the index.
type Kind uint8

const (
	KindTower Kind = 1 << iota
	KindMonster
	KindProjectile
)

// KindFilter is a mask of kinds; KindAny matches everything.
type KindFilter = Kind

// KindAny matches every occupant kind.
const KindAny KindFilter = KindTower | KindMonster | KindProjectile

// occupant is one entry in a grid-square bucket.
type occupant struct {
	e    ecs.Entity
	kind Kind
}

// slot records where an entity is indexed so removal needs no scan of the grid.
type slot struct {
	pos    arena.Position
	bucket int
	kind   Kind
}

// OccupancyIndex buckets entities by placement grid square for O(1)
// "is this cell blocked" queries.
type OccupancyIndex struct {
	bounds arena.Bounds
	cells  [][]occupant // one bucket per grid square, row-major
	where  map[ecs.Entity]slot
}

// NewOccupancyIndex creates an empty index over the arena's grid squares.
func NewOccupancyIndex(bounds arena.Bounds) *OccupancyIndex {
	cells := make([][]occupant, bounds.Columns()*bounds.Rows())
	for i := range cells {
		cells[i] = make([]occupant, 0, 2)
	}
	return &OccupancyIndex{
		bounds: bounds,
		cells:  cells,
		where:  make(map[ecs.Entity]slot),
	}
}

// Bounds returns the arena bounds the index covers.
func (o *OccupancyIndex) Bounds() arena.Bounds { return o.bounds }

// Len returns the number of indexed entities.
func (o *OccupancyIndex) Len() int { return len(o.where) }

// Add indexes e at pos. Returns false, changing nothing, if e is already indexed.
func (o *OccupancyIndex) Add(e ecs.Entity, kind Kind, pos arena.Position) bool {
	if _, ok := o.where[e]; ok {
		return false
	}
	idx := o.bucketOf(pos)
	o.cells[idx] = append(o.cells[idx], occupant{e: e, kind: kind})
	o.where[e] = slot{pos: pos, bucket: idx, kind: kind}
	return true
}

// Remove drops e from the index. Returns false if e was not indexed.
func (o *OccupancyIndex) Remove(e ecs.Entity) bool {
	s, ok := o.where[e]
	if !ok {
		return false
	}
	o.removeFromBucket(s.bucket, e)
	delete(o.where, e)
	return true
}

// Move re-indexes e at pos. Returns false if e is not indexed.
func (o *OccupancyIndex) Move(e ecs.Entity, pos arena.Position) bool {
	s, ok := o.where[e]
	if !ok {
		return false
	}
	idx := o.bucketOf(pos)
	if idx != s.bucket {
		o.removeFromBucket(s.bucket, e)
		o.cells[idx] = append(o.cells[idx], occupant{e: e, kind: s.kind})
	}
	o.where[e] = slot{pos: pos, bucket: idx, kind: s.kind}
	return true
}

// Where returns the indexed position of e.
func (o *OccupancyIndex) Where(e ecs.Entity) (arena.Position, bool) {
	s, ok := o.where[e]
	return s.pos, ok
}

// IsOccupied reports whether the grid square containing pos holds any
// occupant matching filter.
func (o *OccupancyIndex) IsOccupied(pos arena.Position, filter KindFilter) bool {
	for _, occ := range o.cells[o.bucketOf(pos)] {
		if occ.kind&filter != 0 {
			return true
		}
	}
	return false
}

// QueryCell returns every entity in the grid square containing pos,
// in insertion order.
func (o *OccupancyIndex) QueryCell(pos arena.Position) []ecs.Entity {
	return o.QueryCellInto(nil, pos, KindAny)
}

// QueryCellInto appends matching entities in pos's grid square to dst.
// Reuse dst across calls to avoid allocations.
func (o *OccupancyIndex) QueryCellInto(dst []ecs.Entity, pos arena.Position, filter KindFilter) []ecs.Entity {
	for _, occ := range o.cells[o.bucketOf(pos)] {
		if occ.kind&filter != 0 {
			dst = append(dst, occ.e)
		}
	}
	return dst
}

// Blocker returns a predicate reporting cells blocked by filter.
func (o *OccupancyIndex) Blocker(filter KindFilter) Blocker {
	return func(p arena.Position) bool {
		return o.IsOccupied(p, filter)
	}
}

func (o *OccupancyIndex) bucketOf(pos arena.Position) int {
	return o.bounds.SquareIndex(o.bounds.SquareOf(pos))
}

func (o *OccupancyIndex) removeFromBucket(idx int, e ecs.Entity) {
	bucket := o.cells[idx]
	for i, occ := range bucket {
		if occ.e == e {
			// Preserve insertion order for QueryCell.
			copy(bucket[i:], bucket[i+1:])
			o.cells[idx] = bucket[:len(bucket)-1]
			return
		}
	}
}
