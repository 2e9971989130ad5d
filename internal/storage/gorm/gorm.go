// Package gormstorage implements storage.Backend on top of GORM. It serves
// both Postgres and SQLite; the dialect only matters to internal/database.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/database"
	"github.com/shottracker/shottracker/internal/model"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
	"gorm.io/gorm"
)

// ErrNoDatabase is returned by every operation when the backend has no DB.
var ErrNoDatabase = errors.New("gorm backend has no database")

// Dependencies holds everything the backend needs from its owner.
type Dependencies struct {
	DB         *gorm.DB
	RifleCache *cache.RifleCache
	Logger     *slog.Logger
}

// Backend persists rifles and shots through GORM.
type Backend struct {
	db     *gorm.DB
	rifles *cache.RifleCache
	log    *slog.Logger
}

// New creates a GORM backend. A nil cache or logger is replaced by a fresh
// cache or slog.Default().
func New(deps Dependencies) *Backend {
	if deps.RifleCache == nil {
		deps.RifleCache = cache.NewRifleCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		db:     deps.DB,
		rifles: deps.RifleCache,
		log:    deps.Logger.With("component", "storage.gorm"),
	}
}

// DB exposes the underlying connection to wrapping backends.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema and warms the rifle cache.
func (b *Backend) Init() error {
	if b.db == nil {
		return ErrNoDatabase
	}
	if err := database.Migrate(b.db); err != nil {
		return err
	}

	var rows []model.Rifle
	if err := b.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load rifles: %w", err)
	}
	rifles := make([]core.Rifle, 0, len(rows))
	for _, r := range rows {
		rifles = append(rifles, r.Core())
	}
	b.rifles.SetAll(rifles)
	b.log.Debug("Rifle cache warmed", "rifles", len(rifles))
	return nil
}

// Close is a no-op; the connection belongs to whoever opened it.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) AddRifle(ctx context.Context, p core.RifleProfile) (core.Rifle, error) {
	if b.db == nil {
		return core.Rifle{}, ErrNoDatabase
	}
	r := core.Rifle{ID: uuid.NewString(), RifleProfile: p}
	row := model.RifleFromCore(r)
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.Rifle{}, fmt.Errorf("failed to insert rifle: %w", err)
	}
	b.rifles.Set(r)
	return r, nil
}

// GetRifle reads through the rifle cache.
func (b *Backend) GetRifle(ctx context.Context, id string) (core.Rifle, error) {
	if r, ok := b.rifles.Get(id); ok {
		return r, nil
	}
	if b.db == nil {
		return core.Rifle{}, ErrNoDatabase
	}

	var row model.Rifle
	err := b.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Rifle{}, storage.ErrRifleNotFound
	}
	if err != nil {
		return core.Rifle{}, fmt.Errorf("failed to read rifle %s: %w", id, err)
	}

	r := row.Core()
	b.rifles.Set(r)
	return r, nil
}

func (b *Backend) ListRifles(ctx context.Context) ([]core.Rifle, error) {
	if b.db == nil {
		return nil, ErrNoDatabase
	}
	var rows []model.Rifle
	if err := b.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list rifles: %w", err)
	}
	out := make([]core.Rifle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Core())
	}
	return out, nil
}

// RecordShots inserts the batch in one statement per CreateBatchSize rows.
func (b *Backend) RecordShots(ctx context.Context, shots []core.ShotRecord) error {
	if len(shots) == 0 {
		return nil
	}
	if b.db == nil {
		return ErrNoDatabase
	}
	rows := make([]model.Shot, 0, len(shots))
	for _, s := range shots {
		rows = append(rows, model.ShotFromCore(s))
	}
	if err := b.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert %d shots: %w", len(rows), err)
	}
	return nil
}

// RecentShots returns up to limit shots, newest first.
func (b *Backend) RecentShots(ctx context.Context, limit int) ([]core.ShotRecord, error) {
	if b.db == nil {
		return nil, ErrNoDatabase
	}
	var rows []model.Shot
	err := b.db.WithContext(ctx).
		Order("id desc").
		Limit(storage.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read shots: %w", err)
	}
	out := make([]core.ShotRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Core())
	}
	return out, nil
}
