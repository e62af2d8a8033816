package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/loadtest/usecase"
)

// StatusServer exposes live run progress while a load test is executing:
// a JSON status snapshot, Prometheus metrics and a health check.
type StatusServer struct {
	tracker  *usecase.ProgressTracker
	registry *prometheus.Registry
	logger   *logrus.Logger
	server   *http.Server
}

// NewStatusServer creates a status server for the given tracker. The
// registry must be the one the tracker's collectors were registered with.
func NewStatusServer(tracker *usecase.ProgressTracker, registry *prometheus.Registry, logger *logrus.Logger) *StatusServer {
	return &StatusServer{
		tracker:  tracker,
		registry: registry,
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *StatusServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *StatusServer) Start(ctx context.Context, port int) {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		s.logger.WithField("port", port).Info("status server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("status server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("status server shutdown failed")
		}
	}()
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tracker.Status()); err != nil {
		s.logger.WithError(err).Error("failed to encode status response")
	}
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
