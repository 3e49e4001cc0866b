package game

import (
	"sync"
	"testing"

	"deadzone/internal/game/spatial"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineRejectsBadCellSizes(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero ground cell", Config{TickRate: 30, GroundCellSize: 0, WorldCellSize: 25}},
		{"negative world cell", Config{TickRate: 30, GroundCellSize: 40, WorldCellSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestSpawnAndDespawn(t *testing.T) {
	e := newTestEngine(t)

	p, err := e.Spawn(KindPlayer, 1, spatial.Vec{10, 10, 0}, spatial.Vec{}, 100, 0.5)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if e.Size() != 1 {
		t.Fatalf("Size = %d, want 1", e.Size())
	}

	got, err := e.QueryRadius(spatial.Vec{10, 10, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != p.ID {
		t.Errorf("spawned entity not queryable: %v", got)
	}

	e.Despawn(p.ID)
	if e.Size() != 0 {
		t.Errorf("Size after despawn = %d, want 0", e.Size())
	}
	got, err = e.QueryRadius(spatial.Vec{10, 10, 0}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("despawned entity still queryable: %v", got)
	}

	// Unknown ID is a no-op.
	e.Despawn(9999)
}

func TestTickIntegratesAndResyncs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 10 // dt = 0.1
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	p, err := e.Spawn(KindPlayer, 1, spatial.Vec{0, 0, 0}, spatial.Vec{100, 0, 0}, 100, 0)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		e.Tick()
	}

	got, ok := e.Get(p.ID)
	if !ok {
		t.Fatal("entity vanished")
	}
	if got.Pos[0] < 99 || got.Pos[0] > 101 {
		t.Errorf("after 1s at 100u/s, X = %v, want ~100", got.Pos[0])
	}

	// The index must track the movement, not the spawn position.
	hits, err := e.QueryRadius(spatial.Vec{100, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("moved entity not found at new position: %v", hits)
	}
	hits, err = e.QueryRadius(spatial.Vec{0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("moved entity still found at spawn position: %v", hits)
	}
}

func TestMove(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Spawn(KindPlayer, 1, spatial.Vec{0, 0, 0}, spatial.Vec{}, 100, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Move(p.ID, spatial.Vec{500, 500, 20}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	hits, err := e.QueryRadius(spatial.Vec{500, 500, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("entity not at moved position: %v", hits)
	}

	if err := e.Move(9999, spatial.Vec{0, 0, 0}); err == nil {
		t.Error("moving an unknown entity should error")
	}
}

func TestResolveBlast(t *testing.T) {
	e := newTestEngine(t)

	near, _ := e.Spawn(KindEnemy, 2, spatial.Vec{5, 0, 0}, spatial.Vec{}, 100, 0)
	far, _ := e.Spawn(KindEnemy, 2, spatial.Vec{18, 0, 0}, spatial.Vec{}, 100, 0)
	item, _ := e.Spawn(KindItem, 0, spatial.Vec{2, 0, 0}, spatial.Vec{}, 0, 0)
	outside, _ := e.Spawn(KindEnemy, 2, spatial.Vec{100, 0, 0}, spatial.Vec{}, 100, 0)

	var died []spatial.ID
	e.OnDeath = func(v *Entity) { died = append(died, v.ID) }

	hits, err := e.ResolveBlast(spatial.Vec{0, 0, 0}, 20, 100)
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[spatial.ID]BlastHit)
	for _, h := range hits {
		byID[h.ID] = h
	}

	// Linear falloff: 5/20 from center → 75 damage, 18/20 → 10 damage.
	if h := byID[near.ID]; h.Damage != 75 || h.Died {
		t.Errorf("near hit = %+v, want 75 damage, alive", h)
	}
	if h := byID[far.ID]; h.Damage != 10 || h.Died {
		t.Errorf("far hit = %+v, want 10 damage, alive", h)
	}
	if _, ok := byID[item.ID]; ok {
		t.Error("items must not take blast damage")
	}
	if _, ok := byID[outside.ID]; ok {
		t.Error("entity outside the radius was hit")
	}
	if len(died) != 0 {
		t.Errorf("no one should have died: %v", died)
	}

	// Finish off the near enemy.
	if _, err := e.ResolveBlast(spatial.Vec{5, 0, 0}, 10, 50); err != nil {
		t.Fatal(err)
	}
	if len(died) != 1 || died[0] != near.ID {
		t.Errorf("died = %v, want [%d]", died, near.ID)
	}
	if _, ok := e.Get(near.ID); ok {
		t.Error("dead entity still in the world")
	}
}

// TestBlastUsesVerticalDistance: a blast at ground level must not reach an
// entity directly above it at altitude, even though they share a 2D cell.
func TestBlastUsesVerticalDistance(t *testing.T) {
	e := newTestEngine(t)
	high, _ := e.Spawn(KindEnemy, 2, spatial.Vec{0, 0, 50}, spatial.Vec{}, 100, 0)

	hits, err := e.ResolveBlast(spatial.Vec{0, 0, 0}, 20, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("blast reached through 50 units of altitude: %v", hits)
	}

	got, _ := e.Get(high.ID)
	if got.HP != 100 {
		t.Errorf("HP = %d, want 100", got.HP)
	}
}

func TestNearestHostile(t *testing.T) {
	e := newTestEngine(t)

	self, _ := e.Spawn(KindPlayer, 1, spatial.Vec{0, 0, 0}, spatial.Vec{}, 100, 0)
	e.Spawn(KindPlayer, 1, spatial.Vec{1, 0, 0}, spatial.Vec{}, 100, 0)  // teammate
	e.Spawn(KindItem, 0, spatial.Vec{2, 0, 0}, spatial.Vec{}, 0, 0)      // item
	enemy, _ := e.Spawn(KindEnemy, 2, spatial.Vec{9, 0, 0}, spatial.Vec{}, 100, 0)
	e.Spawn(KindEnemy, 2, spatial.Vec{30, 0, 0}, spatial.Vec{}, 100, 0) // farther enemy

	got, found, err := e.NearestHostile(self.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.ID != enemy.ID {
		t.Errorf("NearestHostile = %+v found=%v, want enemy %d", got, found, enemy.ID)
	}

	// Out of range.
	_, found, err = e.NearestHostile(self.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found a hostile inside 5 units; nearest is at 9")
	}

	if _, _, err := e.NearestHostile(9999, 10); err == nil {
		t.Error("unknown entity should error")
	}
}

func TestPickupCollection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PickupRange = 10
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	player, _ := e.Spawn(KindPlayer, 1, spatial.Vec{0, 0, 0}, spatial.Vec{}, 100, 0)
	inRange, _ := e.Spawn(KindItem, 0, spatial.Vec{5, 5, 0}, spatial.Vec{}, 0, 0)
	outRange, _ := e.Spawn(KindItem, 0, spatial.Vec{50, 50, 0}, spatial.Vec{}, 0, 0)

	var collected []spatial.ID
	e.OnPickup = func(p, item *Entity) {
		if p.ID != player.ID {
			t.Errorf("pickup credited to %d, want %d", p.ID, player.ID)
		}
		collected = append(collected, item.ID)
	}

	e.Tick()

	if len(collected) != 1 || collected[0] != inRange.ID {
		t.Errorf("collected = %v, want [%d]", collected, inRange.ID)
	}
	if _, ok := e.Get(inRange.ID); ok {
		t.Error("collected item still in the world")
	}
	if _, ok := e.Get(outRange.ID); !ok {
		t.Error("out-of-range item vanished")
	}

	// A second tick must not re-collect.
	collected = collected[:0]
	e.Tick()
	if len(collected) != 0 {
		t.Errorf("item collected twice: %v", collected)
	}
}

func TestQueryBoundsThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	e.Spawn(KindPlayer, 1, spatial.Vec{5, 5, 0}, spatial.Vec{}, 100, 0)
	e.Spawn(KindPlayer, 1, spatial.Vec{50, 50, 0}, spatial.Vec{}, 100, 0)

	got, err := e.QueryBounds(spatial.Vec{0, 0, 0}, spatial.Vec{10, 10, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("bounds query returned %d entities, want 1", len(got))
	}
}

func TestStartStop(t *testing.T) {
	e := newTestEngine(t)
	e.Start()
	e.Start() // double start is a no-op
	e.Stop()
	e.Stop() // double stop must not panic
}

func TestStartAfterStopStaysStopped(t *testing.T) {
	e := newTestEngine(t)
	e.Start()
	e.Stop()
	e.Start()

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if running {
		t.Error("engine reports running after Stop; it is one-shot")
	}
}

// Query methods hold only the read lock, so many clients may query at
// once. Run under the race detector this catches any unsynchronized
// write on the query path.
func TestConcurrentQueries(t *testing.T) {
	e := newTestEngine(t)
	self, err := e.Spawn(KindPlayer, 1, spatial.Vec{0, 0, 0}, spatial.Vec{}, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		pos := spatial.Vec{float64(i * 3), float64(i % 7 * 5), float64(i % 3)}
		if _, err := e.Spawn(KindEnemy, 2, pos, spatial.Vec{}, 100, 0); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := e.QueryRadius(spatial.Vec{50, 10, 0}, 30); err != nil {
					t.Error(err)
				}
				if _, err := e.QueryRadius3D(spatial.Vec{50, 10, 0}, 30); err != nil {
					t.Error(err)
				}
				if _, err := e.QueryBounds(spatial.Vec{0, 0, 0}, spatial.Vec{60, 30, 5}); err != nil {
					t.Error(err)
				}
				if _, _, err := e.NearestHostile(self.ID, 40); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	ground, _ := e.IndexStats()
	// 8 goroutines x 200 iterations x (1 ground query + 1 nearest).
	if ground.Queries != 8*200*2 {
		t.Errorf("ground query counter = %d, want %d", ground.Queries, 8*200*2)
	}
}
