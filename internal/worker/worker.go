package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/queue"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
)

// EventRecordShot is the dispatcher event type handled by the worker.
const EventRecordShot = "record_shot"

// DefaultFlushInterval is used when Dependencies.FlushInterval is not set.
const DefaultFlushInterval = 2 * time.Second

// ShotSink receives every flushed batch after it reached storage.
type ShotSink interface {
	WriteShots(shots []core.ShotRecord) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend       storage.Backend
	Sink          ShotSink // optional, e.g. InfluxDB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// Stats is a snapshot of the recorder state.
type Stats struct {
	Pending           int
	Flushed           int
	Dropped           uint64
	LastFlushDuration time.Duration
}

// Manager buffers recorded shots and flushes them to storage in batches
type Manager struct {
	deps  Dependencies
	log   *slog.Logger
	queue *queue.Queue[core.ShotRecord]
	now   func() time.Time

	flushMu   sync.Mutex
	flushed   cache.SafeCounter
	lastFlush time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:     deps,
		log:      deps.Logger.With("component", "worker"),
		queue:    queue.NewBounded[core.ShotRecord](deps.QueueLimit),
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandlers registers the worker's event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(EventRecordShot, m.handleRecordShot, dispatcher.Buffered(1024), dispatcher.Logged())
}

func (m *Manager) handleRecordShot(e dispatcher.Event) (any, error) {
	var rec core.ShotRecord
	if err := e.Decode(&rec); err != nil {
		return nil, err
	}
	if rec.Time.IsZero() {
		rec.Time = e.Timestamp
	}
	m.Record(rec)
	return nil, nil
}

// Record queues a shot for the next flush.
func (m *Manager) Record(rec core.ShotRecord) {
	if rec.Time.IsZero() {
		rec.Time = m.now()
	}
	if dropped := m.queue.Push(rec); dropped > 0 {
		m.log.Warn("Shot queue full, dropped oldest shots", "dropped", dropped, "limit", m.queue.Limit())
	}
}

// Start runs the flush loop until Stop is called.
func (m *Manager) Start() {
	go m.loop()
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if err := m.Flush(context.Background()); err != nil {
				m.log.Error("Flush failed", "error", err)
			}
		}
	}
}

// Stop ends the flush loop and flushes what is left. Stop must only be
// called after Start.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Flush(ctx)
}

// Flush writes all queued shots to storage, then to the sink. Shots that
// fail to reach storage are put back for the next attempt.
func (m *Manager) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	batch := m.queue.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := m.deps.Backend.RecordShots(ctx, batch); err != nil {
		m.queue.Requeue(batch)
		return fmt.Errorf("failed to store %d shots: %w", len(batch), err)
	}
	m.lastFlush = time.Since(start)
	m.flushed.Add(len(batch))

	if m.deps.Sink != nil {
		if err := m.deps.Sink.WriteShots(batch); err != nil {
			m.log.Warn("Failed to write shots to sink", "shots", len(batch), "error", err)
		}
	}

	m.log.Debug("Flushed shots", "shots", len(batch), "took", m.lastFlush)
	return nil
}

// Stats returns the current queue and flush counters.
func (m *Manager) Stats() Stats {
	m.flushMu.Lock()
	last := m.lastFlush
	m.flushMu.Unlock()
	return Stats{
		Pending:           m.queue.Len(),
		Flushed:           m.flushed.Value(),
		Dropped:           m.queue.Dropped(),
		LastFlushDuration: last,
	}
}
