package game

import (
	"fmt"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/systems"
)

// checkPlacement reports whether a tower may stand on sq. vacated is the
// square the tower leaves when moving, or nil for a new tower.
func (s *Session) checkPlacement(sq arena.Square, vacated *arena.Square) error {
	center := s.bounds.SquareCenter(sq)
	if s.occupancy.IsOccupied(center, systems.KindTower) {
		return fmt.Errorf("square %v: %w", sq, ErrSquareOccupied)
	}
	if s.occupancy.IsOccupied(center, systems.KindMonster) {
		return fmt.Errorf("square %v: %w", sq, ErrSquareHasMonster)
	}
	if sq == s.goalSquare() || sq == s.spawnSquare() {
		return fmt.Errorf("square %v: %w", sq, ErrReservedSquare)
	}
	if !s.hasRoute(sq, vacated) {
		return fmt.Errorf("square %v: %w", sq, ErrBlocksRoute)
	}
	return nil
}

func (s *Session) goalSquare() arena.Square { return s.bounds.SquareOf(s.goal) }

func (s *Session) spawnSquare() arena.Square {
	return s.bounds.SquareOf(arena.Position{X: s.cfg.Monsters.SpawnX, Y: s.cfg.Monsters.SpawnY})
}

// hasRoute flood fills grid squares from the goal as if a tower stood on
// added and not on vacated, and reports whether the spawn square and every
// monster's square are still reached.
func (s *Session) hasRoute(added arena.Square, vacated *arena.Square) bool {
	b := s.bounds
	cols, rows := b.Columns(), b.Rows()
	free := make([]bool, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			sq := arena.Square{Col: col, Row: row}
			free[b.SquareIndex(sq)] = !s.occupancy.IsOccupied(b.SquareCenter(sq), systems.KindTower)
		}
	}
	if vacated != nil {
		free[b.SquareIndex(*vacated)] = true
	}
	free[b.SquareIndex(added)] = false

	visited := make([]bool, len(free))
	goal := s.goalSquare()
	stack := []arena.Square{goal}
	visited[b.SquareIndex(goal)] = true
	for len(stack) > 0 {
		sq := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range [4]arena.Square{
			{Col: sq.Col - 1, Row: sq.Row},
			{Col: sq.Col + 1, Row: sq.Row},
			{Col: sq.Col, Row: sq.Row - 1},
			{Col: sq.Col, Row: sq.Row + 1},
		} {
			if n.Col < 0 || n.Row < 0 || n.Col >= cols || n.Row >= rows {
				continue
			}
			idx := b.SquareIndex(n)
			if visited[idx] || !free[idx] {
				continue
			}
			visited[idx] = true
			stack = append(stack, n)
		}
	}

	if !visited[b.SquareIndex(s.spawnSquare())] {
		return false
	}
	reached := true
	query := s.monsterFilter.Query()
	for query.Next() {
		pos, _ := query.Get()
		if !visited[b.SquareIndex(b.SquareOf(toArena(pos)))] {
			reached = false
		}
	}
	return reached
}
