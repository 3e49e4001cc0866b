package game

import (
	"fmt"

	"deadzone/internal/game/spatial"
)

// NearestHostile finds the closest live entity on another team, by
// horizontal distance. Used by the AI to pick targets each tick. The
// second return is false when nothing hostile is in range.
func (e *Engine) NearestHostile(id spatial.ID, maxDist float64) (Entity, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	self, ok := e.entities[id]
	if !ok {
		return Entity{}, false, fmt.Errorf("nearest hostile: entity %d not found", id)
	}

	hit, found, err := e.ground.Nearest(self.Pos, maxDist, func(c spatial.Entity) bool {
		other, ok := e.entities[c.ID]
		return ok && other.ID != self.ID && self.Hostile(other)
	})
	if err != nil || !found {
		return Entity{}, false, err
	}
	return *e.entities[hit.ID], true, nil
}
