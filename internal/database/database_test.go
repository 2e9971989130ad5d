package database

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shottracker/shottracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SqliteInMemory(t *testing.T) {
	m := NewManager(zerolog.New(io.Discard))
	require.NoError(t, m.Connect("sqlite"))
	t.Cleanup(func() { _ = m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	assert.True(t, m.InMemory)
	assert.True(t, m.DB.Migrator().HasTable(&model.Rifle{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.Shot{}))
}

func TestConnect_SqliteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots.db")
	m := NewManager(zerolog.New(io.Discard))
	m.SqliteFilePath = path
	require.NoError(t, m.Connect("sqlite"))
	t.Cleanup(func() { _ = m.Close() })

	assert.False(t, m.InMemory)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestConnect_UnknownType(t *testing.T) {
	m := NewManager(zerolog.New(io.Discard))
	err := m.Connect("mongo")
	require.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestOpenSqlite_InMemoryDatabasesAreIsolated(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&model.Rifle{ID: "r1", Name: "308"}).Error)

	assert.False(t, b.Migrator().HasTable(&model.Rifle{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Rifle{ID: "r1", Name: "6.5 CM", ZeroYards: 100, MuzzleVelocityFPS: 2700}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := OpenSqlite(path)
	require.NoError(t, err)
	var rifle model.Rifle
	require.NoError(t, disk.First(&rifle, "id = ?", "r1").Error)
	assert.Equal(t, "6.5 CM", rifle.Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN()
	assert.Contains(t, dsn, "sslmode=disable")
}
