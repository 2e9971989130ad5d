package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
)

// Backend keeps rifles and shot history in memory and optionally exports
// them to JSON on Close
type Backend struct {
	cfg config.MemoryConfig
	now func() time.Time

	rifles map[string]core.Rifle
	order  []string // rifle IDs in insertion order
	shots  []core.ShotRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		now:    time.Now,
		rifles: make(map[string]core.Rifle),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the collected data when an output directory is configured
func (b *Backend) Close() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exportJSON()
}

// AddRifle stores a profile under a fresh UUID
func (b *Backend) AddRifle(_ context.Context, p core.RifleProfile) (core.Rifle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := core.Rifle{ID: uuid.NewString(), RifleProfile: p}
	b.rifles[r.ID] = r
	b.order = append(b.order, r.ID)
	return r, nil
}

func (b *Backend) GetRifle(_ context.Context, id string) (core.Rifle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.rifles[id]
	if !ok {
		return core.Rifle{}, storage.ErrRifleNotFound
	}
	return r, nil
}

// ListRifles returns rifles in the order they were added
func (b *Backend) ListRifles(_ context.Context) ([]core.Rifle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Rifle, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.rifles[id])
	}
	return out, nil
}

// RecordShots assigns IDs and appends the shots. When a shot limit is set the
// oldest shots are discarded.
func (b *Backend) RecordShots(_ context.Context, shots []core.ShotRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range shots {
		b.idCounter++
		s.ID = b.idCounter
		b.shots = append(b.shots, s)
	}
	if limit := b.cfg.ShotLimit; limit > 0 && len(b.shots) > limit {
		b.shots = append([]core.ShotRecord(nil), b.shots[len(b.shots)-limit:]...)
	}
	return nil
}

// RecentShots returns up to limit shots, newest first
func (b *Backend) RecentShots(_ context.Context, limit int) ([]core.ShotRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit = storage.NormalizeLimit(limit)
	out := make([]core.ShotRecord, 0, min(limit, len(b.shots)))
	for i := len(b.shots) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.shots[i])
	}
	return out, nil
}

// snapshot copies the current state in a stable order for export
func (b *Backend) snapshot() ([]core.Rifle, []core.ShotRecord) {
	rifles := make([]core.Rifle, 0, len(b.order))
	for _, id := range b.order {
		rifles = append(rifles, b.rifles[id])
	}
	shots := append([]core.ShotRecord(nil), b.shots...)
	sort.SliceStable(shots, func(i, j int) bool { return shots[i].ID < shots[j].ID })
	return rifles, shots
}
