package game

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics. Bounded cardinality only: per-entity labels would let a
// client explode the metric space.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_entity_count",
		Help: "Live entities in the world",
	})

	indexCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatial_index_cells",
		Help: "Occupied cells per spatial index",
	}, []string{"index"}) // "ground" or "world"

	indexQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_queries_total",
		Help: "Radius queries answered per spatial index",
	}, []string{"index"})
)

func observeTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// PublishMetrics pushes current gauge values. Called periodically by the
// API layer rather than every tick to keep the tick path lean.
func (e *Engine) PublishMetrics() {
	ground, world := e.IndexStats()
	entityCount.Set(float64(e.Size()))
	indexCells.WithLabelValues("ground").Set(float64(ground.Cells))
	indexCells.WithLabelValues("world").Set(float64(world.Cells))

	// Counters are monotonic; track deltas since the last publish.
	e.mu.Lock()
	groundDelta := ground.Queries - e.lastGroundQueries
	worldDelta := world.Queries - e.lastWorldQueries
	e.lastGroundQueries = ground.Queries
	e.lastWorldQueries = world.Queries
	e.mu.Unlock()

	indexQueries.WithLabelValues("ground").Add(float64(groundDelta))
	indexQueries.WithLabelValues("world").Add(float64(worldDelta))
}
