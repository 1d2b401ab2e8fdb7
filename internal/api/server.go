// Package api implements the Observer read interface from spec.md §6 over
// HTTP: GET /snapshot, GET /healthz, and GET /metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridctl/gridctl/internal/domain"
)

// SnapshotSource is the one operation the Observer read interface needs:
// GetLatestSnapshot(), satisfied by *broadcast.Broadcaster.
type SnapshotSource interface {
	GetLatestSnapshot() (domain.Snapshot, error)
}

// Server is the Observer-facing HTTP API.
type Server struct {
	source SnapshotSource
}

// NewServer creates a Server backed by source.
func NewServer(source SnapshotSource) *Server {
	return &Server{source: source}
}

// Handler returns the chi router with all Observer routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.GetLatestSnapshot()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleHealthz is a liveness check: it always answers 200 once the process
// is serving, but reports link_down from the same snapshot a caller would
// get from /snapshot so a caller doesn't need to poll both endpoints. Before
// the first tick completes there is no snapshot to read LinkDown from, so
// link_down reads true — the endpoint link can't be up before dispatch has
// run at least once.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.GetLatestSnapshot()
	linkDown := true
	if err == nil {
		linkDown = snap.LinkDown
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "link_down": linkDown})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
