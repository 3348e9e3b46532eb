// Package game owns the tower layout and the monsters that path through it.
package game

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/components"
	"github.com/pthm-cable/towerfield/config"
	"github.com/pthm-cable/towerfield/systems"
)

var (
	ErrSquareOccupied     = errors.New("grid square already holds a tower")
	ErrSquareHasMonster   = errors.New("grid square holds a monster")
	ErrReservedSquare     = errors.New("grid square holds the goal or the spawn point")
	ErrBlocksRoute        = errors.New("tower would cut monsters off from the goal")
	ErrUnknownTower       = errors.New("entity is not a tower")
	ErrUnknownKind        = errors.New("unknown tower kind")
	ErrUnknownStrategy    = errors.New("unknown monster strategy")
	ErrMaxLevel           = errors.New("tower is at max level")
	ErrMutationInProgress = errors.New("tower mutation already in progress")
)

// Session holds the arena state: tower and monster entities, the occupancy
// index, the density overlay and both cost fields.
//
// Every tower mutation updates the index and overlay, then publishes on the
// matching Events channel; the cost fields are subscribers and rebuild
// themselves before user handlers run. A Session is not safe for concurrent use.
type Session struct {
	cfg *config.Config
	log *slog.Logger

	world *ecs.World

	towerMapper   *ecs.Map2[components.Position, components.Tower]
	monsterMapper *ecs.Map2[components.Position, components.Monster]
	towerFilter   *ecs.Filter2[components.Position, components.Tower]
	monsterFilter *ecs.Filter2[components.Position, components.Monster]

	// Individual component mappers for lookups
	posMap     *ecs.Map1[components.Position]
	towerMap   *ecs.Map1[components.Tower]
	monsterMap *ecs.Map1[components.Monster]

	bounds    arena.Bounds
	goal      arena.Position
	occupancy *systems.OccupancyIndex
	density   *systems.DensityField
	distance  *systems.CostField[int32]
	attacks   *systems.CostField[float64]

	// Events are the tower channels. Subscribe to observe layout changes.
	Events Events

	onRecompute func(systems.RecomputeStats)

	busy   bool
	tick   int
	nextID uint32
}

// NewSession validates cfg and builds an empty arena with both fields consistent.
// A nil logger uses slog.Default().
func NewSession(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	bounds := cfg.Derived.Bounds
	goal := bounds.MustPosition(cfg.Goal.X, cfg.Goal.Y)
	goals := []arena.Position{goal}
	world := ecs.NewWorld()

	s := &Session{
		cfg:           cfg,
		log:           logger,
		world:         world,
		towerMapper:   ecs.NewMap2[components.Position, components.Tower](world),
		monsterMapper: ecs.NewMap2[components.Position, components.Monster](world),
		towerFilter:   ecs.NewFilter2[components.Position, components.Tower](world),
		monsterFilter: ecs.NewFilter2[components.Position, components.Monster](world),
		posMap:        ecs.NewMap1[components.Position](world),
		towerMap:      ecs.NewMap1[components.Tower](world),
		monsterMap:    ecs.NewMap1[components.Monster](world),
		bounds:        bounds,
		goal:          goal,
		occupancy:     systems.NewOccupancyIndex(bounds),
		density:       systems.NewDensityField(bounds),
		Events:        newEvents(),
	}

	blocked := s.occupancy.Blocker(systems.KindTower)
	s.distance = systems.NewDistanceToGoalField(bounds, goals, blocked)
	s.attacks = systems.NewAttacksToGoalField(bounds, goals, blocked, s.density, cfg.Fields.TieBreakEpsilon)
	s.distance.SetRecomputeHook(s.recomputed)
	s.attacks.SetRecomputeHook(s.recomputed)

	// Fields subscribe first so later handlers read consistent values.
	s.Events.subscribeRecompute(s.distance)
	s.Events.subscribeRecompute(s.attacks)

	s.rebuildFields("init")
	return s, nil
}

// Config returns the session's configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Bounds returns the arena bounds.
func (s *Session) Bounds() arena.Bounds { return s.bounds }

// Goal returns the goal cell.
func (s *Session) Goal() arena.Position { return s.goal }

// Distance returns the unweighted distance-to-goal field.
func (s *Session) Distance() *systems.CostField[int32] { return s.distance }

// Attacks returns the density-weighted attacks-to-goal field.
func (s *Session) Attacks() *systems.CostField[float64] { return s.attacks }

// Occupancy returns the spatial index of towers and monsters.
func (s *Session) Occupancy() *systems.OccupancyIndex { return s.occupancy }

// Density returns the tower attack overlay.
func (s *Session) Density() *systems.DensityField { return s.density }

// Tick returns the number of StepMonsters calls so far.
func (s *Session) Tick() int { return s.tick }

// OnRecompute registers fn to receive stats after every field recompute.
// Pass nil to clear it.
func (s *Session) OnRecompute(fn func(systems.RecomputeStats)) { s.onRecompute = fn }

// Tower returns a snapshot of the tower entity e.
func (s *Session) Tower(e ecs.Entity) (TowerEvent, bool) {
	if !s.isTower(e) {
		return TowerEvent{}, false
	}
	pos, tower := s.towerMapper.Get(e)
	return s.towerEvent(e, toArena(pos), tower), true
}

// Towers returns snapshots of every tower, ordered by ID.
func (s *Session) Towers() []TowerEvent {
	var out []TowerEvent
	query := s.towerFilter.Query()
	for query.Next() {
		pos, tower := query.Get()
		out = append(out, s.towerEvent(query.Entity(), toArena(pos), tower))
	}
	slices.SortFunc(out, func(a, b TowerEvent) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// recomputed is the hook both fields report through.
func (s *Session) recomputed(stats systems.RecomputeStats) {
	s.log.Debug("field_recomputed",
		"field", stats.Field,
		"reason", stats.Reason,
		"pops", stats.Pops,
		"reachable", stats.Reachable,
		"duration", stats.Duration,
	)
	if s.onRecompute != nil {
		s.onRecompute(stats)
	}
}

// rebuildFields recomputes both fields outside of any dispatch.
func (s *Session) rebuildFields(reason string) {
	s.distance.MarkStale()
	s.distance.Recompute(reason)
	s.attacks.MarkStale()
	s.attacks.Recompute(reason)
}

// begin guards against handlers mutating the layout mid-publish.
func (s *Session) begin() error {
	if s.busy {
		return ErrMutationInProgress
	}
	s.busy = true
	return nil
}

func (s *Session) end() { s.busy = false }

func (s *Session) isTower(e ecs.Entity) bool {
	return s.world.Alive(e) && s.towerMap.HasAll(e)
}

func (s *Session) towerEvent(e ecs.Entity, p arena.Position, t *components.Tower) TowerEvent {
	return TowerEvent{
		Entity:   e,
		ID:       t.ID,
		Kind:     s.cfg.Towers[t.Kind].Name,
		Position: p,
		MinRange: t.MinRange,
		MaxRange: t.MaxRange,
		Reload:   t.Reload,
		Level:    t.Level,
	}
}

func toArena(p *components.Position) arena.Position {
	return arena.Position{X: p.X, Y: p.Y}
}

