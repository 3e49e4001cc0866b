// Package spatial provides the uniform-grid spatial index used for
// proximity queries ("which entities are near this point") in sub-linear
// time.
//
// Unlike a per-frame rebuild grid, the Index is incremental: entities are
// inserted once and moved with Update, which only touches the cell mapping
// when an entity actually crosses a cell boundary. Cell keys are composite
// integers, not strings, so neighbor enumeration never allocates or parses.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ID identifies an indexed entity. The index does not own entity identity
// or lifecycle; callers assign IDs and must Remove entities they destroy.
type ID uint64

// Vec is a world position. A 2D index ignores the Z component entirely
// (cell keying, distance checks and validation all skip it).
type Vec [3]float64

// Entity is what the index stores per ID: a copied position plus an
// optional bounding radius.
//
// Radius is recorded for callers that want it back from query results but
// is NOT added to the distance check: queries are point-to-point against
// the query center. Callers that need surface distance must widen the
// query radius themselves.
type Entity struct {
	ID     ID
	Pos    Vec
	Radius float64
}

// CellKey identifies a grid cell by its floor-divided coordinates.
// Z is always 0 for a 2D index.
type CellKey struct {
	X, Y, Z int
}

var (
	// ErrCellSize is returned by New2D/New3D for a non-positive or
	// non-finite cell size.
	ErrCellSize = errors.New("spatial: cell size must be positive and finite")

	// ErrNotFinite is returned when a NaN or infinite coordinate or radius
	// reaches the index. Indexing a non-finite position would corrupt the
	// cell-key arithmetic and strand the entity in an unreachable cell, so
	// it is rejected instead of stored.
	ErrNotFinite = errors.New("spatial: coordinate is not finite")
)

// Index is a uniform-grid spatial index over 2 or 3 axes.
//
// It maps each occupied cell to the set of entities in it, and each entity
// ID to its last known record so that Update can detect cell changes
// without touching the cell mapping in the common (same cell) case.
//
// The Index holds no internal synchronization for its spatial state:
// Insert, Update, Remove and Clear require exclusive access, and a
// concurrent host must wrap them in its own lock. Queries only read the
// spatial state and bump atomic diagnostic counters, so any number of
// queries may run in parallel with each other (but not with mutations),
// which lets a host serve them under a read lock.
type Index struct {
	dims        int
	cellSize    float64
	invCellSize float64

	cells   map[CellKey]map[ID]struct{}
	entries map[ID]Entity // position cache, source of truth for cell membership

	// query diagnostics, not used for correctness
	queries    uint64 // atomic
	hits       uint64 // atomic
	candidates uint64 // atomic
}

// New2D creates an index over the horizontal plane (X, Y). The Z component
// of every position is ignored.
func New2D(cellSize float64) (*Index, error) {
	return newIndex(2, cellSize)
}

// New3D creates an index over all three axes.
func New3D(cellSize float64) (*Index, error) {
	return newIndex(3, cellSize)
}

func newIndex(dims int, cellSize float64) (*Index, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return nil, fmt.Errorf("%w: got %v", ErrCellSize, cellSize)
	}
	return &Index{
		dims:        dims,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[CellKey]map[ID]struct{}),
		entries:     make(map[ID]Entity),
	}, nil
}

// Dims returns 2 or 3.
func (ix *Index) Dims() int { return ix.dims }

// CellSize returns the fixed cell edge length. It never changes for the
// lifetime of the index.
func (ix *Index) CellSize() float64 { return ix.cellSize }

// KeyFor returns the cell key for a position.
func (ix *Index) KeyFor(p Vec) CellKey {
	k := CellKey{
		X: int(math.Floor(p[0] * ix.invCellSize)),
		Y: int(math.Floor(p[1] * ix.invCellSize)),
	}
	if ix.dims == 3 {
		k.Z = int(math.Floor(p[2] * ix.invCellSize))
	}
	return k
}

// checkFinite rejects NaN/Inf on the indexed axes only.
func (ix *Index) checkFinite(p Vec) error {
	for a := 0; a < ix.dims; a++ {
		if math.IsNaN(p[a]) || math.IsInf(p[a], 0) {
			return fmt.Errorf("%w: axis %d = %v", ErrNotFinite, a, p[a])
		}
	}
	return nil
}

// Insert adds an entity at its current position. Inserting an ID that is
// already indexed replaces its old record, equivalent to Remove followed
// by Insert, never a duplicate membership.
func (ix *Index) Insert(e Entity) error {
	if err := ix.checkFinite(e.Pos); err != nil {
		return err
	}
	if old, ok := ix.entries[e.ID]; ok {
		ix.dropFromCell(e.ID, ix.KeyFor(old.Pos))
	}
	ix.addToCell(e.ID, ix.KeyFor(e.Pos))
	ix.entries[e.ID] = e
	return nil
}

// Update re-synchronizes an already-indexed entity's position.
//
// If the entity stays inside its cell only the cached record is refreshed;
// no cell-mapping churn. This is the common case for slowly-moving
// entities and the reason the position cache exists. Updating an unknown
// ID behaves as a fresh Insert rather than corrupting state.
func (ix *Index) Update(e Entity) error {
	if err := ix.checkFinite(e.Pos); err != nil {
		return err
	}
	old, ok := ix.entries[e.ID]
	if !ok {
		ix.addToCell(e.ID, ix.KeyFor(e.Pos))
		ix.entries[e.ID] = e
		return nil
	}
	oldKey, newKey := ix.KeyFor(old.Pos), ix.KeyFor(e.Pos)
	if oldKey != newKey {
		ix.dropFromCell(e.ID, oldKey)
		ix.addToCell(e.ID, newKey)
	}
	ix.entries[e.ID] = e
	return nil
}

// Remove deletes an entity from the index. Unknown entities are a no-op.
func (ix *Index) Remove(e Entity) {
	ix.RemoveByID(e.ID)
}

// RemoveByID deletes an entity by identifier. Unknown IDs are a no-op.
func (ix *Index) RemoveByID(id ID) {
	e, ok := ix.entries[id]
	if !ok {
		return
	}
	ix.dropFromCell(id, ix.KeyFor(e.Pos))
	delete(ix.entries, id)
}

// Get returns the cached record for an ID.
func (ix *Index) Get(id ID) (Entity, bool) {
	e, ok := ix.entries[id]
	return e, ok
}

func (ix *Index) addToCell(id ID, k CellKey) {
	cell := ix.cells[k]
	if cell == nil {
		cell = make(map[ID]struct{})
		ix.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// dropFromCell removes an ID from a cell, deleting the cell entry when it
// empties. Empty cells must never persist in the mapping.
func (ix *Index) dropFromCell(id ID, k CellKey) {
	cell := ix.cells[k]
	if cell == nil {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(ix.cells, k)
	}
}

// QueryRadius returns every entity whose Euclidean distance to center is
// at most radius. No duplicates, order unspecified. A negative radius
// matches nothing.
//
// Only cells within ceil(radius/cellSize) steps of the center cell are
// visited, a conservative overestimate (a cell can contain a point up to
// its far corner), so near-boundary entities are never missed. Candidates
// outside the true radius are filtered by squared distance, avoiding a
// square root per candidate.
func (ix *Index) QueryRadius(center Vec, radius float64) ([]Entity, error) {
	if err := ix.checkFinite(center); err != nil {
		return nil, err
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius = %v", ErrNotFinite, radius)
	}
	atomic.AddUint64(&ix.queries, 1)
	if radius < 0 || len(ix.entries) == 0 {
		return nil, nil
	}

	fcr := math.Ceil(radius * ix.invCellSize)
	ck := ix.KeyFor(center)
	r2 := radius * radius

	// Cells the enumeration would touch, computed in float so an extreme
	// radius/cellSize ratio cannot overflow. When the rectangle is larger
	// than the set of occupied cells, walking the occupied cells and
	// range-checking their keys is strictly cheaper; since every
	// occupied cell inside the rectangle is still visited, the covered
	// candidate set is identical.
	span := 2*fcr + 1
	enumerated := span * span
	if ix.dims == 3 {
		enumerated *= span
	}

	var (
		out  []Entity
		cand uint64
	)
	if enumerated > float64(len(ix.cells)) {
		for k, cell := range ix.cells {
			if !inKeyRange(k, ck, fcr, ix.dims) {
				continue
			}
			cand += uint64(len(cell))
			out = ix.collect(out, cell, center, r2)
		}
	} else {
		cellRadius := int(fcr)
		zLo, zHi := 0, 0
		if ix.dims == 3 {
			zLo, zHi = ck.Z-cellRadius, ck.Z+cellRadius
		}
		for x := ck.X - cellRadius; x <= ck.X+cellRadius; x++ {
			for y := ck.Y - cellRadius; y <= ck.Y+cellRadius; y++ {
				for z := zLo; z <= zHi; z++ {
					if cell := ix.cells[CellKey{x, y, z}]; cell != nil {
						cand += uint64(len(cell))
						out = ix.collect(out, cell, center, r2)
					}
				}
			}
		}
	}
	// One add per counter per query rather than one per candidate keeps
	// the cell loop free of contended memory traffic.
	atomic.AddUint64(&ix.candidates, cand)
	atomic.AddUint64(&ix.hits, uint64(len(out)))
	return out, nil
}

// collect appends the members of one cell that pass the exact distance
// check. Cells are disjoint, so no deduplication pass is needed.
func (ix *Index) collect(out []Entity, cell map[ID]struct{}, center Vec, r2 float64) []Entity {
	for id := range cell {
		e := ix.entries[id]
		if ix.distSq(e.Pos, center) <= r2 {
			out = append(out, e)
		}
	}
	return out
}

// inKeyRange checks Chebyshev distance between cell keys in float to stay
// safe for cell radii beyond the int range.
func inKeyRange(k, center CellKey, r float64, dims int) bool {
	if math.Abs(float64(k.X-center.X)) > r || math.Abs(float64(k.Y-center.Y)) > r {
		return false
	}
	if dims == 3 && math.Abs(float64(k.Z-center.Z)) > r {
		return false
	}
	return true
}

func (ix *Index) distSq(a, b Vec) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	d := dx*dx + dy*dy
	if ix.dims == 3 {
		dz := a[2] - b[2]
		d += dz * dz
	}
	return d
}

// Nearest returns the entity within maxDist of center that minimizes the
// distance to it, optionally filtered by keep. Ties break arbitrarily.
// The second return is false when nothing qualifies.
func (ix *Index) Nearest(center Vec, maxDist float64, keep func(Entity) bool) (Entity, bool, error) {
	hits, err := ix.QueryRadius(center, maxDist)
	if err != nil {
		return Entity{}, false, err
	}
	var best Entity
	bestD := math.Inf(1)
	found := false
	for _, e := range hits {
		if keep != nil && !keep(e) {
			continue
		}
		if d := ix.distSq(e.Pos, center); d < bestD {
			best, bestD, found = e, d, true
		}
	}
	return best, found, nil
}

// QueryBounds returns every entity inside the axis-aligned box [min, max]
// on the indexed axes.
//
// This is a deliberate full scan of the position cache, not a grid walk:
// axis-aligned range queries are rare in the surrounding game and the scan
// keeps the implementation simple. Do not "optimize" it without a profile
// showing it matters.
func (ix *Index) QueryBounds(min, max Vec) ([]Entity, error) {
	if err := ix.checkFinite(min); err != nil {
		return nil, err
	}
	if err := ix.checkFinite(max); err != nil {
		return nil, err
	}
	var out []Entity
	for _, e := range ix.entries {
		inside := true
		for a := 0; a < ix.dims; a++ {
			if e.Pos[a] < min[a] || e.Pos[a] > max[a] {
				inside = false
				break
			}
		}
		if inside {
			out = append(out, e)
		}
	}
	return out, nil
}

// Clear empties the index. Cell size and query counters are kept.
func (ix *Index) Clear() {
	ix.cells = make(map[CellKey]map[ID]struct{})
	ix.entries = make(map[ID]Entity)
}

// Size returns the number of indexed entities.
func (ix *Index) Size() int { return len(ix.entries) }

// CellCount returns the number of occupied cells. Empty cells are removed
// eagerly, so this is exactly the number of cells with members.
func (ix *Index) CellCount() int { return len(ix.cells) }
