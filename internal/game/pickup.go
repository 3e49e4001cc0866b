package game

// collectPickups gives each player every item within pickup range on the
// horizontal plane. Items are despawned as they are collected, so two
// players contesting one item resolve in map-iteration order, which is
// as arbitrary as the original tie-break. Caller holds the write lock.
func (e *Engine) collectPickups() {
	for _, player := range e.entities {
		if player.Kind != KindPlayer || !player.Alive() {
			continue
		}
		// Positions are engine-owned and always finite, so the query
		// cannot fail.
		hits, err := e.ground.QueryRadius(player.Pos, e.cfg.PickupRange)
		if err != nil {
			continue
		}
		for _, h := range hits {
			item, ok := e.entities[h.ID]
			if !ok || item.Kind != KindItem {
				continue
			}
			if e.OnPickup != nil {
				e.OnPickup(player, item)
			}
			e.despawnLocked(item.ID)
		}
	}
}
