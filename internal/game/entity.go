package game

import (
	"deadzone/internal/game/spatial"
)

// Kind classifies a world entity. It drives which subsystems care about
// the entity (targeting skips items, pickup detection only sees items).
type Kind uint8

const (
	KindPlayer Kind = iota
	KindEnemy
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindEnemy:
		return "enemy"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

// Entity is the engine's authoritative record for one world object. The
// spatial indexes hold copies of its position; the engine is the source
// of truth and re-syncs the indexes every tick.
type Entity struct {
	ID     spatial.ID
	Kind   Kind
	Team   int
	Pos    spatial.Vec
	Vel    spatial.Vec
	HP     int
	Radius float64
}

// Alive reports whether the entity still takes part in the simulation.
// Items have no HP and count as alive until picked up.
func (e *Entity) Alive() bool {
	return e.Kind == KindItem || e.HP > 0
}

// Hostile reports whether other is a valid target for e: a different
// team, not an item, and still alive.
func (e *Entity) Hostile(other *Entity) bool {
	return other.Kind != KindItem && other.Team != e.Team && other.Alive()
}

// ref converts the entity to its spatial-index record.
func (e *Entity) ref() spatial.Entity {
	return spatial.Entity{ID: e.ID, Pos: e.Pos, Radius: e.Radius}
}
