package gormstorage

import (
	"context"
	"testing"
	"time"

	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/database"
	"github.com/shottracker/shottracker/internal/model"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

// newTestBackend creates a Backend over a private in-memory SQLite database.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	b := New(Dependencies{DB: db, RifleCache: cache.NewRifleCache()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

var profile = core.RifleProfile{Name: "6.5 Creedmoor", ZeroYards: 100, MuzzleVelocityFPS: 2710}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.ErrorIs(t, b.Init(), ErrNoDatabase)

	_, err := b.ListRifles(context.Background())
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = b.AddRifle(context.Background(), profile)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestAddRifle_PersistsAndCaches(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	r, err := b.AddRifle(ctx, profile)
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)

	var row model.Rifle
	require.NoError(t, b.DB().First(&row, "id = ?", r.ID).Error)
	assert.Equal(t, "6.5 Creedmoor", row.Name)

	cached, ok := b.rifles.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r, cached)
}

func TestGetRifle_ReadsThroughCache(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	r, err := b.AddRifle(ctx, profile)
	require.NoError(t, err)
	b.rifles.Reset()

	got, err := b.GetRifle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, 1, b.rifles.Len(), "rifle should be cached after a miss")
}

func TestGetRifle_NotFound(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.GetRifle(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrRifleNotFound)
}

func TestListRifles(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	empty, err := b.ListRifles(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = b.AddRifle(ctx, profile)
	require.NoError(t, err)
	_, err = b.AddRifle(ctx, core.RifleProfile{Name: "308", ZeroYards: 100, MuzzleVelocityFPS: 2650})
	require.NoError(t, err)

	rifles, err := b.ListRifles(ctx)
	require.NoError(t, err)
	assert.Len(t, rifles, 2)
}

func TestInit_WarmsCacheFromExistingRows(t *testing.T) {
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(&model.Rifle{ID: "r1", Name: "pre-existing", MuzzleVelocityFPS: 2600}).Error)

	c := cache.NewRifleCache()
	b := New(Dependencies{DB: db, RifleCache: c})
	require.NoError(t, b.Init())

	got, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "pre-existing", got.Name)
}

func TestRecordShots_AndRecentShots(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var batch []core.ShotRecord
	for i := 1; i <= 4; i++ {
		d := float64(i * 100)
		batch = append(batch, core.ShotRecord{
			Time:    base.Add(time.Duration(i) * time.Second),
			RifleID: "r1",
			Source:  "http",
			Request: core.ShotRequest{DistanceYards: d, WindSpeedMPH: 10, WindAngleDeg: 90, Rifle: profile},
			Result:  core.ShotResult{DistanceYards: d, WindSpeedMPH: 10, WindAngleDeg: 90, DropMOA: d / 50},
		})
	}
	require.NoError(t, b.RecordShots(ctx, batch))
	require.NoError(t, b.RecordShots(ctx, nil))

	shots, err := b.RecentShots(ctx, 3)
	require.NoError(t, err)
	require.Len(t, shots, 3)

	newest := shots[0]
	assert.Equal(t, 400.0, newest.Result.DistanceYards)
	assert.Equal(t, 8.0, newest.Result.DropMOA)
	assert.Equal(t, "6.5 Creedmoor", newest.Request.Rifle.Name)
	assert.Equal(t, "r1", newest.RifleID)
	assert.True(t, newest.ID > shots[1].ID)
	assert.True(t, base.Add(4*time.Second).Equal(newest.Time))
}
