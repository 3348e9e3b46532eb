package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/towerfield/components"
	"github.com/pthm-cable/towerfield/systems"
)

// PlaceTower creates a tower of the named catalog kind on the grid square
// containing (x, y). Towers sit on the square's center. The square must be
// free of towers and monsters, must not hold the goal or the spawn point, and
// the new tower must leave a route from the spawn point and every monster to
// the goal.
func (s *Session) PlaceTower(kind string, x, y int) (ecs.Entity, error) {
	if err := s.begin(); err != nil {
		return ecs.Entity{}, err
	}
	defer s.end()

	tc, kindIdx, ok := s.cfg.Tower(kind)
	if !ok {
		return ecs.Entity{}, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	p, err := s.bounds.NewPosition(x, y)
	if err != nil {
		return ecs.Entity{}, err
	}
	sq := s.bounds.SquareOf(p)
	if err := s.checkPlacement(sq, nil); err != nil {
		return ecs.Entity{}, err
	}
	center := s.bounds.SquareCenter(sq)

	s.nextID++
	tower := components.Tower{
		ID:        s.nextID,
		Kind:      kindIdx,
		MinRange:  tc.MinRange,
		MaxRange:  tc.MaxRange,
		Reload:    tc.Reload,
		MinReload: tc.MinReload,
	}
	e := s.towerMapper.NewEntity(&components.Position{X: center.X, Y: center.Y}, &tower)
	s.occupancy.Add(e, systems.KindTower, center)
	s.density.ApplyTower(+1, &tower, center)

	evt := s.towerEvent(e, center, &tower)
	if err := s.Events.TowerAdded.Publish(s, evt); err != nil {
		s.occupancy.Remove(e)
		s.density.ApplyTower(-1, &tower, center)
		s.world.RemoveEntity(e)
		s.rebuildFields("rollback")
		return ecs.Entity{}, fmt.Errorf("place %s at %v: %w", kind, center, err)
	}

	s.log.Info("tower_placed",
		"id", tower.ID,
		"kind", kind,
		"x", center.X,
		"y", center.Y,
	)
	return e, nil
}

// RemoveTower deletes the tower entity e.
func (s *Session) RemoveTower(e ecs.Entity) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if !s.isTower(e) {
		return ErrUnknownTower
	}
	pos, t := s.towerMapper.Get(e)
	center := toArena(pos)
	tower := *t

	s.occupancy.Remove(e)
	s.density.ApplyTower(-1, &tower, center)

	evt := s.towerEvent(e, center, &tower)
	if err := s.Events.TowerRemoved.Publish(s, evt); err != nil {
		s.occupancy.Add(e, systems.KindTower, center)
		s.density.ApplyTower(+1, &tower, center)
		s.rebuildFields("rollback")
		return fmt.Errorf("remove tower %d: %w", tower.ID, err)
	}
	s.world.RemoveEntity(e)

	s.log.Info("tower_removed", "id", tower.ID, "kind", evt.Kind)
	return nil
}

// UpgradeTower lowers the tower's reload by its catalog step, down to its
// minimum, and grows its max range. Fails with ErrMaxLevel at the cap.
func (s *Session) UpgradeTower(e ecs.Entity) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if !s.isTower(e) {
		return ErrUnknownTower
	}
	pos, tower := s.towerMapper.Get(e)
	center := toArena(pos)
	tc := s.cfg.Towers[tower.Kind]
	if tc.MaxLevel > 0 && tower.Level >= tc.MaxLevel {
		return fmt.Errorf("tower %d level %d: %w", tower.ID, tower.Level, ErrMaxLevel)
	}

	before := *tower
	s.density.ApplyTower(-1, &before, center)
	tower.Reload = max(tower.MinReload, tower.Reload-tc.ReloadStep)
	tower.MaxRange += tc.RangeStep
	tower.Level++
	after := *tower
	s.density.ApplyTower(+1, &after, center)

	evt := TowerUpgradeEvent{
		Before: s.towerEvent(e, center, &before),
		After:  s.towerEvent(e, center, &after),
	}
	if err := s.Events.TowerUpgraded.Publish(s, evt); err != nil {
		s.density.ApplyTower(-1, &after, center)
		*s.towerMap.Get(e) = before
		s.density.ApplyTower(+1, &before, center)
		s.rebuildFields("rollback")
		return fmt.Errorf("upgrade tower %d: %w", before.ID, err)
	}

	s.log.Info("tower_upgraded",
		"id", before.ID,
		"level", evt.After.Level,
		"reload", evt.After.Reload,
		"max_range", evt.After.MaxRange,
	)
	return nil
}

// MoveTower relocates the tower to the grid square containing (x, y).
// Moving within the same square is a no-op. The target square follows the
// PlaceTower rules with the old square counted as free.
func (s *Session) MoveTower(e ecs.Entity, x, y int) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if !s.isTower(e) {
		return ErrUnknownTower
	}
	p, err := s.bounds.NewPosition(x, y)
	if err != nil {
		return err
	}
	pos, t := s.towerMapper.Get(e)
	from := toArena(pos)
	sq := s.bounds.SquareOf(p)
	to := s.bounds.SquareCenter(sq)
	if to == from {
		return nil
	}
	vacated := s.bounds.SquareOf(from)
	if err := s.checkPlacement(sq, &vacated); err != nil {
		return err
	}
	tower := *t

	s.density.ApplyTower(-1, &tower, from)
	s.occupancy.Move(e, to)
	pos.X, pos.Y = to.X, to.Y
	s.density.ApplyTower(+1, &tower, to)

	evt := TowerMoveEvent{
		From: s.towerEvent(e, from, &tower),
		To:   s.towerEvent(e, to, &tower),
	}
	if err := s.Events.TowerMoved.Publish(s, evt); err != nil {
		s.density.ApplyTower(-1, &tower, to)
		s.occupancy.Move(e, from)
		*s.posMap.Get(e) = components.Position{X: from.X, Y: from.Y}
		s.density.ApplyTower(+1, &tower, from)
		s.rebuildFields("rollback")
		return fmt.Errorf("move tower %d to %v: %w", tower.ID, to, err)
	}

	s.log.Info("tower_moved",
		"id", tower.ID,
		"from_x", from.X,
		"from_y", from.Y,
		"to_x", to.X,
		"to_y", to.Y,
	)
	return nil
}

