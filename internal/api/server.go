// Package api serves spatial queries over the stored navigational aids.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/monitoring"
	"github.com/sells-group/navaids/internal/store"
)

// readyLookbackHours is the refresh-log window read by /ready.
const readyLookbackHours = 24

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store   store.Store
	health  *monitoring.Collector
	metrics *monitoring.Metrics
}

// NewServer creates a Server. metrics may be nil.
func NewServer(st store.Store, health *monitoring.Collector, metrics *monitoring.Metrics) *Server {
	return &Server{store: st, health: health, metrics: metrics}
}

// Routes builds the router.
func (s *Server) Routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/points", func(r chi.Router) {
		r.Get("/near", s.handleNear)
		r.Post("/within", s.handleWithin)
	})
	return r
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.metrics.APIDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap, err := s.health.Collect(r.Context(), readyLookbackHours)
	if err != nil {
		zap.L().Warn("api: readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	if !snap.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "points": snap.PointsStored})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"points":       snap.PointsStored,
		"last_success": snap.LastSuccess,
		"stale":        snap.Stale,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
