package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/storage/memory"
	sqlitestorage "github.com/shottracker/shottracker/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStorageBackend(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name  string
		cfg   config.StorageConfig
		check func(t *testing.T, b any)
	}{
		{"memory", config.StorageConfig{Type: "memory"}, func(t *testing.T, b any) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"default", config.StorageConfig{}, func(t *testing.T, b any) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"sqlite in memory", config.StorageConfig{Type: "sqlite"}, func(t *testing.T, b any) {
			assert.IsType(t, &sqlitestorage.Backend{}, b)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := createStorageBackend(tt.cfg, zerolog.Nop(), log)
			require.NoError(t, err)
			require.NoError(t, b.Init())
			t.Cleanup(func() { _ = b.Close() })
			tt.check(t, b)
		})
	}
}

func TestCreateStorageBackend_Unknown(t *testing.T) {
	_, err := createStorageBackend(config.StorageConfig{Type: "cassandra"}, zerolog.Nop(), slog.Default())
	assert.EqualError(t, err, "unknown storage type: cassandra")
}
