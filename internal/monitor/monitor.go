package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shottracker/shottracker/internal/worker"
)

// DefaultInterval is used when Dependencies.Interval is not set.
const DefaultInterval = 10 * time.Second

// StatsSource reports recorder counters.
type StatsSource interface {
	Stats() worker.Stats
}

// StatusSink receives every status snapshot, e.g. InfluxDB.
type StatusSink interface {
	WriteStatus(s Status) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Worker     StatsSource
	Sink       StatusSink // optional
	Logger     *slog.Logger
	Version    string
	Storage    string
	StatusPath string // status file, rewritten every tick when set
	Interval   time.Duration
}

// Status is a snapshot of the running service.
type Status struct {
	Time          time.Time `json:"time"`
	Version       string    `json:"version"`
	Storage       string    `json:"storage"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	PendingShots  int       `json:"pending_shots"`
	FlushedShots  int       `json:"flushed_shots"`
	DroppedShots  uint64    `json:"dropped_shots"`
	LastFlushMs   float64   `json:"last_flush_ms"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	log     *slog.Logger
	started time.Time
	now     func() time.Time

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		log:     deps.Logger.With("component", "monitor"),
		started: time.Now(),
		now:     time.Now,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current service status.
func (s *Service) Status() Status {
	now := s.now()
	st := Status{
		Time:          now,
		Version:       s.deps.Version,
		Storage:       s.deps.Storage,
		UptimeSeconds: now.Sub(s.started).Seconds(),
	}
	if s.deps.Worker != nil {
		ws := s.deps.Worker.Stats()
		st.PendingShots = ws.Pending
		st.FlushedShots = ws.Flushed
		st.DroppedShots = ws.Dropped
		st.LastFlushMs = float64(ws.LastFlushDuration) / float64(time.Millisecond)
	}
	return st
}

// WriteStatusFile replaces the status file with the given snapshot.
func WriteStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return nil
}

// Tick takes one snapshot and hands it to the status file and the sink.
func (s *Service) Tick() Status {
	st := s.Status()
	if s.deps.StatusPath != "" {
		if err := WriteStatusFile(s.deps.StatusPath, st); err != nil {
			s.log.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Sink != nil {
		if err := s.deps.Sink.WriteStatus(st); err != nil {
			s.log.Warn("Error writing status to sink", "error", err)
		}
	}
	if st.DroppedShots > 0 {
		s.log.Warn("Shots were dropped", "dropped", st.DroppedShots, "pending", st.PendingShots)
	} else {
		s.log.Debug("Status", "pending", st.PendingShots, "flushed", st.FlushedShots)
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.log.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
