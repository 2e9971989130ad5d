package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/storage/memory"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct{}

func (mockLogger) Debug(string, ...any) {}
func (mockLogger) Info(string, ...any)  {}
func (mockLogger) Error(string, ...any) {}

// flakyBackend fails RecordShots until healed
type flakyBackend struct {
	*memory.Backend
	mu     sync.Mutex
	broken bool
}

func (b *flakyBackend) RecordShots(ctx context.Context, shots []core.ShotRecord) error {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()
	if broken {
		return errors.New("database unavailable")
	}
	return b.Backend.RecordShots(ctx, shots)
}

func (b *flakyBackend) heal() {
	b.mu.Lock()
	b.broken = false
	b.mu.Unlock()
}

// recordingSink collects everything written to it
type recordingSink struct {
	mu    sync.Mutex
	shots []core.ShotRecord
	err   error
}

func (s *recordingSink) WriteShots(shots []core.ShotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots = append(s.shots, shots...)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shots)
}

func shot(distance float64) core.ShotRecord {
	return core.ShotRecord{
		Source:  "test",
		Request: core.ShotRequest{DistanceYards: distance},
		Result:  core.ShotResult{DistanceYards: distance},
	}
}

func TestRecordAndFlush(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	sink := &recordingSink{}
	m := NewManager(Dependencies{Backend: backend, Sink: sink})

	m.Record(shot(100))
	m.Record(shot(200))
	assert.Equal(t, 2, m.Stats().Pending)

	require.NoError(t, m.Flush(context.Background()))

	stats := m.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 2, stats.Flushed)
	assert.Equal(t, 2, sink.len())

	stored, err := backend.RecentShots(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.False(t, stored[0].Time.IsZero(), "Record should stamp the time")
}

func TestFlush_EmptyIsNoop(t *testing.T) {
	m := NewManager(Dependencies{Backend: memory.New(config.MemoryConfig{})})
	assert.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 0, m.Stats().Flushed)
}

func TestFlush_RequeuesOnStorageError(t *testing.T) {
	backend := &flakyBackend{Backend: memory.New(config.MemoryConfig{}), broken: true}
	sink := &recordingSink{}
	m := NewManager(Dependencies{Backend: backend, Sink: sink})

	m.Record(shot(100))
	err := m.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store 1 shots")
	assert.Equal(t, 1, m.Stats().Pending)
	assert.Equal(t, 0, sink.len(), "sink must only see stored shots")

	backend.heal()
	require.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 0, m.Stats().Pending)
	assert.Equal(t, 1, sink.len())
}

func TestFlush_SinkErrorDoesNotFail(t *testing.T) {
	sink := &recordingSink{err: errors.New("influx down")}
	m := NewManager(Dependencies{Backend: memory.New(config.MemoryConfig{}), Sink: sink})

	m.Record(shot(100))
	assert.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 1, m.Stats().Flushed)
}

func TestQueueLimit_DropsOldest(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	m := NewManager(Dependencies{Backend: backend, QueueLimit: 2})

	m.Record(shot(1))
	m.Record(shot(2))
	m.Record(shot(3))

	stats := m.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, uint64(1), stats.Dropped)

	require.NoError(t, m.Flush(context.Background()))
	stored, _ := backend.RecentShots(context.Background(), 10)
	require.Len(t, stored, 2)
	assert.Equal(t, 3.0, stored[0].Request.DistanceYards)
	assert.Equal(t, 2.0, stored[1].Request.DistanceYards)
}

func TestStartStop_FlushesPeriodicallyAndOnStop(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	m := NewManager(Dependencies{Backend: backend, FlushInterval: 10 * time.Millisecond})
	m.Start()

	m.Record(shot(100))
	assert.Eventually(t, func() bool {
		return m.Stats().Flushed == 1
	}, time.Second, 5*time.Millisecond)

	m.Record(shot(200))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 2, m.Stats().Flushed)
	// Stop twice is safe
	require.NoError(t, m.Stop(context.Background()))
}

func TestRegisterHandlers_RecordsDispatchedShots(t *testing.T) {
	d, err := dispatcher.New(mockLogger{})
	require.NoError(t, err)

	m := NewManager(Dependencies{Backend: memory.New(config.MemoryConfig{})})
	m.RegisterHandlers(d)
	assert.True(t, d.HasHandler(EventRecordShot))

	payload, err := json.Marshal(shot(300))
	require.NoError(t, err)
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	result, err := d.Dispatch(dispatcher.Event{Type: EventRecordShot, Payload: payload, Timestamp: stamp})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	assert.Eventually(t, func() bool { return m.Stats().Pending == 1 }, time.Second, 5*time.Millisecond)

	batch := m.queue.GetAndEmpty()
	require.Len(t, batch, 1)
	assert.True(t, stamp.Equal(batch[0].Time))
}

func TestShutdown_DispatcherCloseThenStopPersistsQueued(t *testing.T) {
	d, err := dispatcher.New(mockLogger{})
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{})
	m := NewManager(Dependencies{Backend: backend, FlushInterval: time.Hour})
	m.RegisterHandlers(d)
	m.Start()

	payload, err := json.Marshal(shot(300))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err := d.Dispatch(dispatcher.Event{Type: EventRecordShot, Payload: payload})
		require.NoError(t, err)
	}

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	shots, err := backend.RecentShots(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, shots, 50)
	assert.Equal(t, 50, m.Stats().Flushed)
}

func TestHandleRecordShot_BadPayload(t *testing.T) {
	m := NewManager(Dependencies{Backend: memory.New(config.MemoryConfig{})})
	_, err := m.handleRecordShot(dispatcher.Event{Type: EventRecordShot, Payload: json.RawMessage(`{"time": 5}`)})
	assert.Error(t, err)
}
