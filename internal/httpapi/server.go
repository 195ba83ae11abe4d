// Package httpapi serves the operational surface: health, engine status,
// and Prometheus metrics. It is read-only; no endpoint mutates trading
// state.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/revertlabs/meanrev/internal/engine"
	"github.com/revertlabs/meanrev/internal/metrics"
)

// StatusSource provides the engine snapshot.
type StatusSource interface {
	Status() engine.Status
}

// Pinger reports backing-store health. May be nil.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the API.
type Server struct {
	router  *mux.Router
	status  StatusSource
	metrics *metrics.Metrics
	db      Pinger
	http    *http.Server
}

// New builds the server. db may be nil when persistence is disabled.
func New(addr string, status StatusSource, m *metrics.Metrics, db Pinger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		status:  status,
		metrics: m,
		db:      db,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("http api listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			health["database"] = "ok"
		}
	}

	writeJSON(w, code, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine not running"})
		return
	}
	snap, err := s.metrics.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("failed to gather metrics snapshot")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"engine":  s.status.Status(),
		"metrics": snap,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
