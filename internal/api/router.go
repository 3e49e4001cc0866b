package api

import (
	"net/http"
	"os"
	"strings"

	"deadzone/internal/game"
	"deadzone/internal/game/spatial"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the engine methods the API layer calls.
// An interface so handler tests can run against a stub without the tick
// loop. Keep it minimal.
type EngineInterface interface {
	Spawn(kind game.Kind, team int, pos, vel spatial.Vec, hp int, radius float64) (*game.Entity, error)
	Despawn(id spatial.ID)
	Move(id spatial.ID, pos spatial.Vec) error
	Get(id spatial.ID) (game.Entity, bool)
	QueryRadius(center spatial.Vec, radius float64) ([]game.Entity, error)
	QueryRadius3D(center spatial.Vec, radius float64) ([]game.Entity, error)
	QueryBounds(min, max spatial.Vec) ([]game.Entity, error)
	NearestHostile(id spatial.ID, maxDist float64) (game.Entity, bool, error)
	ResolveBlast(center spatial.Vec, radius float64, damage int) ([]game.BlastHit, error)
	IndexStats() (ground, world spatial.Stats)
	Size() int
	TickCount() int64
}

// RouterConfig contains the dependencies needed to construct the router.
type RouterConfig struct {
	// Engine is required.
	Engine EngineInterface

	// RateLimiter is optional; if nil one is built from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only when RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// DisableLogging drops the request logger (benchmarks, tests).
	DisableLogging bool
}

type routerHandlers struct {
	engine EngineInterface
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It is pure: no goroutines, no listeners, safe for httptest.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limit before CORS so floods are rejected cheaply.
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlc := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlc = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlc)
	}
	r.Use(rateLimiter.Middleware)

	// Count every request that reaches routing. The chi route pattern is
	// the endpoint label, so /api/entities/{id} stays one series no matter
	// how many IDs clients hit. Limiter rejections are tracked separately.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			RecordRequest(req.Method, chi.RouteContext(req.Context()).RoutePattern(), ww.Status())
		})
	})

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
		if extra := os.Getenv("ALLOWED_ORIGINS"); extra != "" {
			corsOrigins = append(corsOrigins, strings.Split(extra, ",")...)
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{engine: cfg.Engine}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.handleStats)
		r.Get("/query", h.handleQuery)
		r.Get("/nearest", h.handleNearest)
		r.Get("/bounds", h.handleBounds)
		r.Post("/blast", h.handleBlast)

		r.Post("/entities", h.handleSpawn)
		r.Post("/entities/{id}/position", h.handleMove)
		r.Delete("/entities/{id}", h.handleRemove)
	})

	return r
}
