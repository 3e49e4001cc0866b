package api

import (
	"log"
	"net/http"
	"time"

	"deadzone/internal/config"
	"deadzone/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server combines the HTTP router with the WebSocket entity feed.
//
// Construction is side-effect free; Start is the only method that opens
// listeners or launches goroutines, so tests can build a Server and use
// Router() with httptest.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	ws          *WSHandler
	rateLimiter *IPRateLimiter
}

// NewServer creates the API server around a running (or not yet started)
// engine.
func NewServer(engine *game.Engine, cfg config.ServerConfig) *Server {
	s := &Server{
		engine: engine,
		ws:     NewWSHandler(engine, cfg.MaxWSPerIP),
	}
	s.rateLimiter = NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerS,
		Burst:             cfg.Burst,
		CleanupInterval:   DefaultRateLimitConfig.CleanupInterval,
	})
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		RateLimiter: s.rateLimiter,
	})
	// The feed endpoint needs the WSHandler instance, so it is attached
	// outside the pure router factory.
	s.router.Get("/ws", s.ws.ServeHTTP)
	return s
}

// Router returns the HTTP handler, for httptest in integration tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start publishes engine metrics periodically and serves HTTP. Blocks.
func (s *Server) Start(addr string) error {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			s.engine.PublishMetrics()
		}
	}()

	log.Printf("API server on %s (REST /api, feed /ws)", addr)
	return http.ListenAndServe(addr, s.router)
}
