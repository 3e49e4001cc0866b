package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"deadzone/internal/game"
	"deadzone/internal/game/spatial"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// queryFloat parses one float query parameter; def is used when absent.
func queryFloat(r *http.Request, key string, def float64) (float64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toEntityState(e game.Entity) EntityState {
	return EntityState{
		ID:     uint64(e.ID),
		Kind:   e.Kind.String(),
		Team:   e.Team,
		X:      e.Pos[0],
		Y:      e.Pos[1],
		Z:      e.Pos[2],
		HP:     e.HP,
		Radius: e.Radius,
	}
}

func toEntityStates(es []game.Entity) []EntityState {
	out := make([]EntityState, len(es))
	for i, e := range es {
		out[i] = toEntityState(e)
	}
	return out
}

func (h *routerHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	ground, world := h.engine.IndexStats()
	writeJSON(w, map[string]interface{}{
		"entities": h.engine.Size(),
		"ticks":    h.engine.TickCount(),
		"ground":   ground,
		"world":    world,
	})
}

// handleQuery answers GET /api/query?x=&y=&z=&r=&dims=
// dims=2 (default) queries the horizontal plane; dims=3 the full world.
func (h *routerHandlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	x, okX := queryFloat(r, "x", 0)
	y, okY := queryFloat(r, "y", 0)
	z, okZ := queryFloat(r, "z", 0)
	radius, okR := queryFloat(r, "r", -1)
	if !okX || !okY || !okZ || !okR || radius < 0 {
		writeError(w, "x, y, z must be numbers and r a non-negative number", http.StatusBadRequest)
		return
	}

	center := spatial.Vec{x, y, z}
	start := time.Now()
	var (
		hits []game.Entity
		err  error
	)
	if r.URL.Query().Get("dims") == "3" {
		hits, err = h.engine.QueryRadius3D(center, radius)
	} else {
		hits, err = h.engine.QueryRadius(center, radius)
	}
	ObserveQuery("query", time.Since(start))

	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"entities": toEntityStates(hits)})
}

// handleNearest answers GET /api/nearest?id=&max=
func (h *routerHandlers) handleNearest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, "id must be an entity ID", http.StatusBadRequest)
		return
	}
	maxDist, ok := queryFloat(r, "max", 100)
	if !ok || maxDist < 0 {
		writeError(w, "max must be a non-negative number", http.StatusBadRequest)
		return
	}

	start := time.Now()
	target, found, err := h.engine.NearestHostile(spatial.ID(id), maxDist)
	ObserveQuery("nearest", time.Since(start))

	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if !found {
		writeJSON(w, map[string]interface{}{"found": false})
		return
	}
	writeJSON(w, map[string]interface{}{"found": true, "target": toEntityState(target)})
}

// handleBounds answers GET /api/bounds?minx=&miny=&minz=&maxx=&maxy=&maxz=
func (h *routerHandlers) handleBounds(w http.ResponseWriter, r *http.Request) {
	var vals [6]float64
	keys := []string{"minx", "miny", "minz", "maxx", "maxy", "maxz"}
	for i, k := range keys {
		v, ok := queryFloat(r, k, 0)
		if !ok {
			writeError(w, k+" must be a number", http.StatusBadRequest)
			return
		}
		vals[i] = v
	}

	start := time.Now()
	hits, err := h.engine.QueryBounds(
		spatial.Vec{vals[0], vals[1], vals[2]},
		spatial.Vec{vals[3], vals[4], vals[5]},
	)
	ObserveQuery("bounds", time.Since(start))

	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"entities": toEntityStates(hits)})
}

func (h *routerHandlers) handleBlast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Z      float64 `json:"z"`
		Radius float64 `json:"radius"`
		Damage int     `json:"damage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Radius < 0 || req.Damage < 0 {
		writeError(w, "radius and damage must be non-negative", http.StatusBadRequest)
		return
	}

	start := time.Now()
	hits, err := h.engine.ResolveBlast(spatial.Vec{req.X, req.Y, req.Z}, req.Radius, req.Damage)
	ObserveQuery("blast", time.Since(start))

	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := make([]BlastHitState, len(hits))
	for i, hit := range hits {
		out[i] = BlastHitState{ID: uint64(hit.ID), Damage: hit.Damage, Died: hit.Died}
	}
	writeJSON(w, map[string]interface{}{"hits": out})
}

func (h *routerHandlers) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string  `json:"kind"`
		Team   int     `json:"team"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Z      float64 `json:"z"`
		HP     int     `json:"hp"`
		Radius float64 `json:"radius"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var kind game.Kind
	switch req.Kind {
	case "player":
		kind = game.KindPlayer
	case "enemy":
		kind = game.KindEnemy
	case "item":
		kind = game.KindItem
	default:
		writeError(w, "kind must be player, enemy or item", http.StatusBadRequest)
		return
	}

	ent, err := h.engine.Spawn(kind, req.Team, spatial.Vec{req.X, req.Y, req.Z}, spatial.Vec{}, req.HP, req.Radius)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"id": uint64(ent.ID)})
}

func (h *routerHandlers) handleMove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, "invalid entity ID", http.StatusBadRequest)
		return
	}
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.Move(spatial.ID(id), spatial.Vec{req.X, req.Y, req.Z}); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, "invalid entity ID", http.StatusBadRequest)
		return
	}
	// Removal of an unknown ID is a no-op, so this always succeeds.
	h.engine.Despawn(spatial.ID(id))
	writeJSON(w, map[string]string{"status": "ok"})
}
