package memory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportBackend(t *testing.T, compress bool) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress})
	b.now = func() time.Time { return time.Date(2024, 6, 2, 15, 4, 5, 0, time.UTC) }

	ctx := context.Background()
	_, err := b.AddRifle(ctx, profile308)
	require.NoError(t, err)

	clamped := shotAt(1000)
	clamped.Clamped = true
	clamped.Result.DropMOA = -12.5
	require.NoError(t, b.RecordShots(ctx, []core.ShotRecord{shotAt(300), clamped}))
	return b
}

func readExport(t *testing.T, path string) Export {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}

	var export Export
	require.NoError(t, json.NewDecoder(r).Decode(&export))
	return export
}

func TestClose_WritesPlainJSON(t *testing.T) {
	b := newExportBackend(t, false)
	require.NoError(t, b.Close())

	path := b.GetExportedFilePath()
	assert.Equal(t, "shottracker_20240602_150405.json", filepath.Base(path))

	export := readExport(t, path)
	assert.Equal(t, ExportVersion, export.Version)
	assert.Len(t, export.Rifles, 1)
	assert.Len(t, export.Shots, 2)
	assert.Equal(t, uint(1), export.Shots[0].ID)
}

func TestClose_WritesGzipJSON(t *testing.T) {
	b := newExportBackend(t, true)
	require.NoError(t, b.Close())

	path := b.GetExportedFilePath()
	assert.True(t, strings.HasSuffix(path, ".json.gz"))

	export := readExport(t, path)
	assert.Equal(t, "308 Win", export.Rifles[0].Name)
}

func TestBuildExport_Summary(t *testing.T) {
	b := newExportBackend(t, false)

	export := b.buildExport()
	assert.Equal(t, 2, export.Summary.Shots)
	assert.Equal(t, 1, export.Summary.ClampedShots)
	assert.Equal(t, 1000.0, export.Summary.MaxDistance)
	assert.Equal(t, 12.5, export.Summary.MaxAbsDropMOA)
}

func TestExport_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.Close())

	_, err := os.Stat(b.GetExportedFilePath())
	assert.NoError(t, err)
}
