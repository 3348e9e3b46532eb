// Package components defines ECS components for arena entities.
package components

// Position is an entity's sample point in the arena.
type Position struct {
	X, Y int
}

// Tower holds the stats that shape a tower's attack annulus.
// Reload is in frames per attack, so a tower contributes 1/Reload attacks
// per frame to every cell in [MinRange, MaxRange].
type Tower struct {
	ID        uint32
	Kind      uint8 // index into config.Towers
	MinRange  int
	MaxRange  int
	Reload    int
	MinReload int
	Level     int
}

// AttacksPerFrame returns the per-cell contribution of this tower.
func (t *Tower) AttacksPerFrame() float64 {
	if t.Reload <= 0 {
		return 0
	}
	return 1 / float64(t.Reload)
}

// Strategy selects which cost field a monster descends.
type Strategy uint8

const (
	StrategyShortest Strategy = iota // distance-to-goal field
	StrategySafest                   // attacks-to-goal field
)

// String returns the config name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyShortest:
		return "shortest"
	case StrategySafest:
		return "safest"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a config name to a Strategy.
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "shortest", "distance":
		return StrategyShortest, true
	case "safest", "attacks":
		return StrategySafest, true
	}
	return 0, false
}

// Monster holds per-monster traversal state.
type Monster struct {
	ID       uint32
	Strategy Strategy
	Steps    int
	Exposure float64 // accumulated attacks-per-frame along the path
}
