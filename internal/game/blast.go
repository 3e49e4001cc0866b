package game

import (
	"math"

	"deadzone/internal/game/spatial"
)

// BlastHit is one entity affected by a blast.
type BlastHit struct {
	ID     spatial.ID
	Kind   Kind
	Damage int
	Died   bool
}

// ResolveBlast applies an explosion at center: every non-item entity
// within radius (full 3D distance, so a rocket detonating on a catwalk
// does not hurt players on the floor below) takes damage with linear
// falloff from the blast center. Entities reduced to zero HP are removed
// from the world and both indexes.
//
// A non-finite center is rejected and nothing is damaged.
func (e *Engine) ResolveBlast(center spatial.Vec, radius float64, damage int) ([]BlastHit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hits, err := e.world.QueryRadius(center, radius)
	if err != nil {
		return nil, err
	}

	var out []BlastHit
	for _, h := range hits {
		ent, ok := e.entities[h.ID]
		if !ok || ent.Kind == KindItem || !ent.Alive() {
			continue
		}

		dx := ent.Pos[0] - center[0]
		dy := ent.Pos[1] - center[1]
		dz := ent.Pos[2] - center[2]
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

		falloff := 1.0
		if radius > 0 {
			falloff = 1.0 - dist/radius
		}
		dealt := int(math.Round(float64(damage) * falloff))
		if dealt <= 0 {
			continue
		}

		ent.HP -= dealt
		hit := BlastHit{ID: ent.ID, Kind: ent.Kind, Damage: dealt, Died: ent.HP <= 0}
		out = append(out, hit)

		if hit.Died {
			if e.OnDeath != nil {
				e.OnDeath(ent)
			}
			e.despawnLocked(ent.ID)
		}
	}
	return out, nil
}
