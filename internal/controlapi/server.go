// Package controlapi exposes a loopback-only, read-only HTTP surface
// over the engine's counters and queue depth: a CLI or sidecar process
// can poll it without touching the database directly. It never mutates
// queue state and is not on any correctness path.
package controlapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fetchcite/fetchcite/internal/engine"
	"github.com/fetchcite/fetchcite/internal/filesystem"
	"github.com/fetchcite/fetchcite/internal/queue"
)

// StatsSource is the minimal surface controlapi needs from a running
// engine run: a function returning the last DownloadStats snapshot a
// caller keeps updated, so this package never reaches into the engine's
// internals.
type StatsSource func() engine.DownloadStats

// Server is the control-plane HTTP listener.
type Server struct {
	router    *chi.Mux
	queue     *queue.Queue
	stats     StatsSource
	outputDir string
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
}

// New builds a Server backed by q for queue counts and stats for the
// most recent DownloadStats snapshot. outputDir, if non-empty, backs
// the /diskspace endpoint. gatherer, if non-nil, backs /metrics with a
// standard Prometheus exposition; nil disables that endpoint.
func New(q *queue.Queue, stats StatsSource, outputDir string, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    chi.NewRouter(),
		queue:     q,
		stats:     stats,
		outputDir: outputDir,
		logger:    logger,
		gatherer:  gatherer,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.loopbackOnly)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/stats", s.handleStats)
	s.router.Get("/queue/counts", s.handleQueueCounts)
	s.router.Get("/diskspace", s.handleDiskSpace)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	} else {
		s.router.Get("/metrics", s.handleMetricsDisabled)
	}
}

func (s *Server) handleMetricsDisabled(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "metrics collection not enabled", http.StatusServiceUnavailable)
}

// loopbackOnly rejects any request whose remote address is not
// localhost, since this surface carries no authentication of its own.
func (s *Server) loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || (host != "127.0.0.1" && host != "::1") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe binds to 127.0.0.1:port and serves until the listener
// is closed or the process exits.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("controlapi: bind %s: %w", addr, err)
	}
	s.logger.Info("control API listening", "addr", addr)
	return http.Serve(ln, s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.stats == nil {
		json.NewEncoder(w).Encode(engine.DownloadStats{})
		return
	}
	json.NewEncoder(w).Encode(s.stats())
}

func (s *Server) handleQueueCounts(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int64{}
	for _, status := range []string{queue.StatusPending, queue.StatusInProgress, queue.StatusCompleted, queue.StatusFailed} {
		n, err := s.queue.CountByStatus(status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		counts[status] = n
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(counts)
}

func (s *Server) handleDiskSpace(w http.ResponseWriter, r *http.Request) {
	if s.outputDir == "" {
		http.Error(w, "disk space unavailable: no output directory configured", http.StatusServiceUnavailable)
		return
	}
	free, total, err := filesystem.DiskUsage(s.outputDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]uint64{"free_bytes": free, "total_bytes": total})
}
