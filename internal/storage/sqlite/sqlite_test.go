package sqlitestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/database"
	"github.com/shottracker/shottracker/internal/model"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func TestInMemory_RoundTrip(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, cache.NewRifleCache(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	ctx := context.Background()
	r, err := b.AddRifle(ctx, core.RifleProfile{Name: "22 LR", ZeroYards: 50, MuzzleVelocityFPS: 1200})
	require.NoError(t, err)

	got, err := b.GetRifle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "22 LR", got.Name)
}

func TestFileDatabase_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots.db")
	ctx := context.Background()

	b, err := New(config.SQLiteConfig{Path: path}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	r, err := b.AddRifle(ctx, core.RifleProfile{Name: "300 WM", ZeroYards: 200, MuzzleVelocityFPS: 2950})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := New(config.SQLiteConfig{Path: path}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	got, err := reopened.GetRifle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "300 WM", got.Name)
}

func TestClose_WritesFinalDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")

	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: time.Hour}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	_, err = b.AddRifle(context.Background(), core.RifleProfile{Name: "dumped", MuzzleVelocityFPS: 2700})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	db, err := database.OpenSqlite(dump)
	require.NoError(t, err)
	var rows []model.Rifle
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "dumped", rows[0].Name)
}

func TestDumpLoop_WritesPeriodically(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")

	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDumpDisabled_WhenDumpPathIsDatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "same.db")
	b, err := New(config.SQLiteConfig{Path: path, DumpPath: path, DumpInterval: time.Millisecond}, nil, nil)
	require.NoError(t, err)
	assert.False(t, b.dumpEnabled())
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
}
