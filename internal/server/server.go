package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stxkxs/ttr/internal/config"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/runner"
	"github.com/stxkxs/ttr/internal/state"
	"github.com/stxkxs/ttr/internal/telemetry"
)

// Server is the ttr upload dashboard and report API.
type Server struct {
	cfg     *config.Config
	runner  *runner.Runner
	history *state.Manager // nil when history is disabled
	metrics *telemetry.Metrics
	broker  *Broker
	logger  *telemetry.Logger
	started time.Time
}

// New creates a new server instance.
func New(cfg *config.Config, rn *runner.Runner, history *state.Manager, eventBus *event.Bus, metrics *telemetry.Metrics, logger *telemetry.Logger) *Server {
	broker := NewBroker(logger)
	// Register the broker as an event hook so report events reach SSE clients.
	eventBus.Register(broker)

	return &Server{
		cfg:     cfg,
		runner:  rn,
		history: history,
		metrics: metrics,
		broker:  broker,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting ttr dashboard", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		s.runner.Wait(5 * time.Second)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Reports
	mux.HandleFunc("POST /api/reports", s.handleCreateReport)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /api/reports/{id}/csv", s.handleDownloadReport)
	mux.HandleFunc("DELETE /api/reports/{id}", s.handleDeleteReport)

	// SSE events
	mux.HandleFunc("GET /api/events", s.handleSSEEvents)
	mux.HandleFunc("GET /api/events/{runID}", s.handleSSEEventsFiltered)

	// Upload page
	mux.Handle("/", staticHandler())

	return mux
}

// corsMiddleware adds CORS headers for development mode.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
