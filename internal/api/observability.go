package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"deadzone/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-entity labels).
var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_query_duration_seconds",
		Help:    "Time spent answering a spatial query via the API",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	}, []string{"op"}) // Bounded: "query", "nearest", "bounds", "blast"

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_limit"

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages processed",
	})
)

// StartDebugServer starts the internal observability server with pprof
// and Prometheus endpoints. It must stay on localhost unless explicitly
// opened: pprof handlers are an easy DoS vector.
func StartDebugServer(cfg config.ObservabilityConfig) {
	if !cfg.Enabled {
		log.Println("debug server disabled")
		return
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("debug server forced to localhost (set ALLOW_DEBUG_EXTERNAL=true to override)")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("debug server on %s (pprof, metrics)", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("debug server error: %v", err)
		}
	}()
}

// ObserveQuery records API-side query timing.
// op must be one of: "query", "nearest", "bounds", "blast".
func ObserveQuery(op string, d time.Duration) {
	queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int) {
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates the WebSocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one processed WebSocket message.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
