// Package server exposes the ballistics service over HTTP and the live aim
// stream over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/shottracker/shottracker/internal/aim"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/logging"
	"github.com/shottracker/shottracker/internal/monitor"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/internal/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/shottracker/shottracker/internal/server"

const shutdownTimeout = 5 * time.Second

// Dependencies holds everything the server needs.
type Dependencies struct {
	Backend storage.Backend
	Solver  *aim.Solver // nil uses the local model and default reticle

	// Dispatcher routes aim-stream messages and, when a worker registered
	// its handlers on it, shot recording. nil creates a private one.
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger

	// Status backs GET /status; the route is not registered when nil.
	Status StatusSource
}

// StatusSource reports the running service's status.
type StatusSource interface {
	Status() monitor.Status
}

// Server is the HTTP front of the service.
type Server struct {
	backend  storage.Backend
	solver   *aim.Solver
	dispatch *dispatcher.Dispatcher
	status   StatusSource
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader ws.Upgrader

	requests metric.Int64Counter
	duration metric.Float64Histogram
	sessions metric.Int64UpDownCounter
}

// New creates a server and registers its routes and stream handlers.
func New(deps Dependencies) (*Server, error) {
	if deps.Backend == nil {
		return nil, errors.New("server: backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Solver == nil {
		deps.Solver = aim.NewSolver(nil, nil)
	}
	if deps.Dispatcher == nil {
		d, err := dispatcher.New(logging.NewDispatcherLogger(deps.Logger))
		if err != nil {
			return nil, fmt.Errorf("create dispatcher: %w", err)
		}
		deps.Dispatcher = d
	}

	s := &Server{
		backend:  deps.Backend,
		solver:   deps.Solver,
		dispatch: deps.Dispatcher,
		status:   deps.Status,
		log:      deps.Logger.With("component", "server"),
		mux:      http.NewServeMux(),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	s.registerStreamHandlers()
	s.routes()
	return s, nil
}

func (s *Server) initMetrics() error {
	m := otel.Meter(instrumentationName)

	var err error
	s.requests, err = m.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total HTTP requests by route and status"),
	)
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}

	s.duration, err = m.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	s.sessions, err = m.Int64UpDownCounter(
		"aim.stream.sessions",
		metric.WithDescription("Open aim-stream connections"),
	)
	if err != nil {
		return fmt.Errorf("creating session counter: %w", err)
	}
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /rifles", s.handleListRifles)
	s.mux.HandleFunc("POST /rifles", s.handleCreateRifle)
	s.mux.HandleFunc("GET /rifles/{id}", s.handleGetRifle)
	s.mux.HandleFunc("POST /calculate", s.handleCalculate)
	s.mux.HandleFunc("POST /reticle", s.handleReticle)
	s.mux.HandleFunc("GET /shots", s.handleRecentShots)
	s.mux.HandleFunc("GET /ws/aim", s.handleAimStream)
	if s.status != nil {
		s.mux.HandleFunc("GET /status", s.handleStatus)
	}
}

// Handler returns the routed handler wrapped in request middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withMetrics(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// record hands a shot to the recording worker when one is registered.
func (s *Server) record(ctx context.Context, payload any) {
	if !s.dispatch.HasHandler(worker.EventRecordShot) {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to encode shot", "error", err)
		return
	}
	if _, err := s.dispatch.Dispatch(dispatcher.Event{
		Type:    worker.EventRecordShot,
		Payload: raw,
		Context: ctx,
	}); err != nil {
		s.log.WarnContext(ctx, "Failed to queue shot", "error", err)
	}
}
