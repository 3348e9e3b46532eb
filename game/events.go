package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/towerfield/arena"
	"github.com/pthm-cable/towerfield/event"
	"github.com/pthm-cable/towerfield/systems"
)

// TowerEvent describes a tower's placement and the stats that shape its
// attack annulus at the moment the event is published.
type TowerEvent struct {
	Entity   ecs.Entity
	ID       uint32
	Kind     string
	Position arena.Position
	MinRange int
	MaxRange int
	Reload   int
	Level    int
}

// TowerUpgradeEvent carries a tower's stats before and after an upgrade.
type TowerUpgradeEvent struct {
	Before TowerEvent
	After  TowerEvent
}

// TowerMoveEvent carries a tower at its old and new grid square.
type TowerMoveEvent struct {
	From TowerEvent
	To   TowerEvent
}

// Events holds the session's tower channels.
// Handlers run synchronously inside the mutating call, after the occupancy
// index and density overlay already reflect the change.
type Events struct {
	TowerAdded    *event.Channel[TowerEvent]
	TowerRemoved  *event.Channel[TowerEvent]
	TowerUpgraded *event.Channel[TowerUpgradeEvent]
	TowerMoved    *event.Channel[TowerMoveEvent]
}

func newEvents() Events {
	return Events{
		TowerAdded:    event.NewChannel[TowerEvent]("tower_added"),
		TowerRemoved:  event.NewChannel[TowerEvent]("tower_removed"),
		TowerUpgraded: event.NewChannel[TowerUpgradeEvent]("tower_upgraded"),
		TowerMoved:    event.NewChannel[TowerMoveEvent]("tower_moved"),
	}
}

// subscribeRecompute rebuilds f after every tower mutation.
func (ev Events) subscribeRecompute(f systems.Recomputer) {
	ev.TowerAdded.Subscribe(systems.RecomputeOn[TowerEvent](f, ev.TowerAdded.Name()))
	ev.TowerRemoved.Subscribe(systems.RecomputeOn[TowerEvent](f, ev.TowerRemoved.Name()))
	ev.TowerUpgraded.Subscribe(systems.RecomputeOn[TowerUpgradeEvent](f, ev.TowerUpgraded.Name()))
	ev.TowerMoved.Subscribe(systems.RecomputeOn[TowerMoveEvent](f, ev.TowerMoved.Name()))
}

