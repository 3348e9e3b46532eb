package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/components"
	"github.com/pthm-cable/towerfield/systems"
)

// Outcome is how a monster left the arena.
type Outcome uint8

const (
	OutcomeArrived Outcome = iota // reached the goal cell
	OutcomeStuck                  // local minimum away from the goal
)

func (o Outcome) String() string {
	if o == OutcomeArrived {
		return "arrived"
	}
	return "stuck"
}

// MonsterOutcome records a monster removed by StepMonsters.
type MonsterOutcome struct {
	ID       uint32
	Strategy components.Strategy
	Outcome  Outcome
	Position arena.Position
	Steps    int
	Exposure float64
	Tick     int
}

// SpawnMonster creates a monster at (x, y) that descends the field chosen
// by strategy.
func (s *Session) SpawnMonster(x, y int, strategy components.Strategy) (ecs.Entity, error) {
	if strategy != components.StrategyShortest && strategy != components.StrategySafest {
		return ecs.Entity{}, fmt.Errorf("strategy %d: %w", strategy, ErrUnknownStrategy)
	}
	p, err := s.bounds.NewPosition(x, y)
	if err != nil {
		return ecs.Entity{}, err
	}
	s.nextID++
	e := s.monsterMapper.NewEntity(
		&components.Position{X: p.X, Y: p.Y},
		&components.Monster{ID: s.nextID, Strategy: strategy},
	)
	s.occupancy.Add(e, systems.KindMonster, p)
	return e, nil
}

// Monsters returns the number of live monsters.
func (s *Session) Monsters() int {
	n := 0
	query := s.monsterFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// StepMonsters advances every monster one cell down its field, accumulating
// the density of each cell entered. Monsters that reach the goal or stall at
// a local minimum are removed and returned.
func (s *Session) StepMonsters() []MonsterOutcome {
	s.tick++

	type finished struct {
		entity  ecs.Entity
		outcome MonsterOutcome
	}
	var done []finished

	// First pass: move monsters (no structural changes during the query)
	query := s.monsterFilter.Query()
	for query.Next() {
		pos, m := query.Get()
		p := toArena(pos)

		next, outcome, stop := s.stepMonster(p, m)
		if next != p {
			pos.X, pos.Y = next.X, next.Y
			m.Steps++
			m.Exposure += s.density.At(next)
			s.occupancy.Move(query.Entity(), next)
		}
		if !stop {
			continue
		}
		done = append(done, finished{
			entity: query.Entity(),
			outcome: MonsterOutcome{
				ID:       m.ID,
				Strategy: m.Strategy,
				Outcome:  outcome,
				Position: next,
				Steps:    m.Steps,
				Exposure: m.Exposure,
				Tick:     s.tick,
			},
		})
	}

	// Second pass: remove finished monsters
	out := make([]MonsterOutcome, 0, len(done))
	for _, d := range done {
		s.occupancy.Remove(d.entity)
		s.world.RemoveEntity(d.entity)
		out = append(out, d.outcome)
		s.log.Debug("monster_finished",
			"id", d.outcome.ID,
			"strategy", d.outcome.Strategy.String(),
			"outcome", d.outcome.Outcome.String(),
			"steps", d.outcome.Steps,
			"exposure", d.outcome.Exposure,
		)
	}
	return out
}

// stepMonster returns the monster's next cell and whether it finishes there.
func (s *Session) stepMonster(p arena.Position, m *components.Monster) (arena.Position, Outcome, bool) {
	if p == s.goal {
		return p, OutcomeArrived, true
	}
	var (
		next arena.Position
		ok   bool
		err  error
	)
	if m.Strategy == components.StrategySafest {
		next, ok, err = s.attacks.DescendTaxicab(p.X, p.Y)
	} else {
		next, ok, err = s.distance.DescendTaxicab(p.X, p.Y)
	}
	if err != nil {
		// Fields are rebuilt inside every mutation; a stale field here is a bug.
		panic(fmt.Sprintf("game: monster %d: %v", m.ID, err))
	}
	if !ok {
		return p, OutcomeStuck, true
	}
	return next, OutcomeArrived, next == s.goal
}
