package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"deadzone/internal/game/spatial"
)

// Config sizes the engine's world and spatial indexes.
type Config struct {
	TickRate       int     // simulation ticks per second
	GroundCellSize float64 // 2D index: targeting and pickup queries
	WorldCellSize  float64 // 3D index: blast resolution
	PickupRange    float64 // horizontal distance at which players collect items
}

// DefaultConfig returns the engine defaults. Cell sizes roughly match the
// common query radii so a query touches a 3x3 (or 3x3x3) block of cells.
func DefaultConfig() Config {
	return Config{
		TickRate:       30,
		GroundCellSize: 40,
		WorldCellSize:  25,
		PickupRange:    15,
	}
}

// Engine runs the simulation loop and owns the two spatial indexes:
// a horizontal-plane index for targeting and pickups, and a full 3D index
// for blast resolution.
//
// All entity state is guarded by one mutex. The indexes themselves carry
// no locks: every index mutation happens under the write lock, and index
// queries are read-only (their diagnostic counters are atomic), so query
// methods can serve concurrent callers under the read lock.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	entities map[spatial.ID]*Entity
	ground   *spatial.Index // 2D
	world    *spatial.Index // 3D
	nextID   spatial.ID

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once

	tickCount int64

	// last published query counters, owned by PublishMetrics
	lastGroundQueries uint64
	lastWorldQueries  uint64

	// Event callbacks, invoked with the engine lock held. Keep them fast.
	OnPickup func(player, item *Entity)
	OnDeath  func(victim *Entity)
}

// NewEngine creates an engine with its spatial indexes. Index cell sizes
// come from cfg; bad sizes fail here, never mid-game.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultConfig().TickRate
	}
	ground, err := spatial.New2D(cfg.GroundCellSize)
	if err != nil {
		return nil, fmt.Errorf("ground index: %w", err)
	}
	world, err := spatial.New3D(cfg.WorldCellSize)
	if err != nil {
		return nil, fmt.Errorf("world index: %w", err)
	}
	return &Engine{
		cfg:      cfg,
		entities: make(map[spatial.ID]*Entity),
		ground:   ground,
		world:    world,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the tick loop. Calling Start twice is a no-op, and so is
// Start after Stop: the engine is one-shot, a stopped engine stays
// stopped. Build a new Engine to run again.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	select {
	case <-e.stopChan:
		e.mu.Unlock()
		return
	default:
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	go func() {
		for {
			select {
			case <-e.stopChan:
				return
			case <-e.ticker.C:
				e.Tick()
			}
		}
	}()
	log.Printf("engine started at %d TPS (ground cell %.0f, world cell %.0f)",
		e.cfg.TickRate, e.cfg.GroundCellSize, e.cfg.WorldCellSize)
}

// Stop halts the tick loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		if e.ticker != nil {
			e.ticker.Stop()
		}
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	})
}

// Tick advances the simulation one step: integrate velocities, re-sync
// both indexes, then run pickup detection. Exported so tests can step the
// simulation without the timer.
func (e *Engine) Tick() {
	start := time.Now()

	e.mu.Lock()
	dt := 1.0 / float64(e.cfg.TickRate)
	for _, ent := range e.entities {
		if ent.Vel == (spatial.Vec{}) {
			continue
		}
		ent.Pos[0] += ent.Vel[0] * dt
		ent.Pos[1] += ent.Vel[1] * dt
		ent.Pos[2] += ent.Vel[2] * dt
		e.syncIndexes(ent)
	}
	e.collectPickups()
	e.tickCount++
	e.mu.Unlock()

	observeTick(time.Since(start))
}

// syncIndexes pushes an entity's current position into both indexes.
// Update only fails on non-finite positions, which the engine never
// stores; a failure here means a bug upstream, so log and keep going.
func (e *Engine) syncIndexes(ent *Entity) {
	if err := e.ground.Update(ent.ref()); err != nil {
		log.Printf("ground index update for entity %d: %v", ent.ID, err)
	}
	if err := e.world.Update(ent.ref()); err != nil {
		log.Printf("world index update for entity %d: %v", ent.ID, err)
	}
}

// Spawn adds an entity to the world and both indexes, assigning its ID.
// A non-finite position is rejected before any state changes.
func (e *Engine) Spawn(kind Kind, team int, pos, vel spatial.Vec, hp int, radius float64) (*Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	ent := &Entity{
		ID:     e.nextID,
		Kind:   kind,
		Team:   team,
		Pos:    pos,
		Vel:    vel,
		HP:     hp,
		Radius: radius,
	}
	if err := e.ground.Insert(ent.ref()); err != nil {
		e.nextID--
		return nil, err
	}
	if err := e.world.Insert(ent.ref()); err != nil {
		e.ground.RemoveByID(ent.ID)
		e.nextID--
		return nil, err
	}
	e.entities[ent.ID] = ent
	return ent, nil
}

// Despawn removes an entity from the world and both indexes. Unknown IDs
// are a no-op.
func (e *Engine) Despawn(id spatial.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.despawnLocked(id)
}

func (e *Engine) despawnLocked(id spatial.ID) {
	if _, ok := e.entities[id]; !ok {
		return
	}
	e.ground.RemoveByID(id)
	e.world.RemoveByID(id)
	delete(e.entities, id)
}

// Move overrides an entity's position, typically from a client position
// feed. The indexes are re-synced immediately so queries issued later in
// the same tick see the new position.
func (e *Engine) Move(id spatial.ID, pos spatial.Vec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("move: entity %d not found", id)
	}
	prev := ent.Pos
	ent.Pos = pos
	if err := e.ground.Update(ent.ref()); err != nil {
		ent.Pos = prev
		return err
	}
	if err := e.world.Update(ent.ref()); err != nil {
		ent.Pos = prev
		_ = e.ground.Update(ent.ref())
		return err
	}
	return nil
}

// Get returns a copy of an entity's record.
func (e *Engine) Get(id spatial.ID) (Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *ent, true
}

// Size returns the number of live entities.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entities)
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// QueryRadius answers a horizontal-plane proximity query with full entity
// records.
func (e *Engine) QueryRadius(center spatial.Vec, radius float64) ([]Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hits, err := e.ground.QueryRadius(center, radius)
	if err != nil {
		return nil, err
	}
	return e.resolve(hits), nil
}

// QueryRadius3D answers a full 3D proximity query (blast-style).
func (e *Engine) QueryRadius3D(center spatial.Vec, radius float64) ([]Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hits, err := e.world.QueryRadius(center, radius)
	if err != nil {
		return nil, err
	}
	return e.resolve(hits), nil
}

// QueryBounds answers an axis-aligned box query on the ground index.
func (e *Engine) QueryBounds(min, max spatial.Vec) ([]Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hits, err := e.ground.QueryBounds(min, max)
	if err != nil {
		return nil, err
	}
	return e.resolve(hits), nil
}

// resolve maps index hits back to full entity records. Requires at least
// the read lock.
func (e *Engine) resolve(hits []spatial.Entity) []Entity {
	out := make([]Entity, 0, len(hits))
	for _, h := range hits {
		if ent, ok := e.entities[h.ID]; ok {
			out = append(out, *ent)
		}
	}
	return out
}

// IndexStats returns diagnostic snapshots of both indexes.
func (e *Engine) IndexStats() (ground, world spatial.Stats) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ground.Stats(), e.world.Stats()
}
