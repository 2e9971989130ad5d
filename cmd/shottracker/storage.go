package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/database"
	"github.com/shottracker/shottracker/internal/storage"
	gormstorage "github.com/shottracker/shottracker/internal/storage/gorm"
	"github.com/shottracker/shottracker/internal/storage/memory"
	sqlitestorage "github.com/shottracker/shottracker/internal/storage/sqlite"
)

// postgresBackend owns the database manager behind a GORM backend so Close
// releases the connection pool.
type postgresBackend struct {
	*gormstorage.Backend
	mgr *database.Manager
}

func (b *postgresBackend) Close() error {
	return errors.Join(b.Backend.Close(), b.mgr.Close())
}

func createStorageBackend(storageCfg config.StorageConfig, dbLog zerolog.Logger, log *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		mgr := database.NewManager(dbLog)
		// falls back to SQLite here when Postgres is unreachable
		mgr.SqliteFilePath = storageCfg.SQLite.Path
		if err := mgr.Connect("postgres"); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Postgres storage backend initialized", "fallback", mgr.ShouldSaveLocal)
		return &postgresBackend{
			Backend: gormstorage.New(gormstorage.Dependencies{
				DB:         mgr.DB,
				RifleCache: cache.NewRifleCache(),
				Logger:     log,
			}),
			mgr: mgr,
		}, nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, cache.NewRifleCache(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return backend, nil

	case "memory", "":
		log.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}
