// Package sqlitestorage implements the storage.Backend interface using a
// SQLite database, either a file or in memory with periodic disk dumps via
// VACUUM INTO. Queries are served by the embedded GORM backend.
package sqlitestorage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shottracker/shottracker/internal/cache"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/database"
	gormstorage "github.com/shottracker/shottracker/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	sqlDB    *sql.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

// New opens the SQLite database described by cfg.
func New(cfg config.SQLiteConfig, rifleCache *cache.RifleCache, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := database.OpenSqlite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if cfg.Path == "" {
		// the in-memory database lives only as long as its connection
		sqlDB.SetMaxOpenConns(1)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         db,
			RifleCache: rifleCache,
			Logger:     log,
		}),
		db:       db,
		sqlDB:    sqlDB,
		cfg:      cfg,
		log:      log.With("component", "storage.sqlite"),
		stopChan: make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumpEnabled() && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.loopDone)
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.loopDone

	var dumpErr error
	if b.dumpEnabled() {
		dumpErr = b.Dump()
	}
	if err := b.sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite DB: %w", err)
	}
	return dumpErr
}

// Dump writes a point-in-time snapshot of the database to DumpPath.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "took", time.Since(start))
	return nil
}

func (b *Backend) dumpEnabled() bool {
	return b.cfg.DumpPath != "" && b.cfg.DumpPath != b.cfg.Path
}

// dumpLoop periodically dumps the database to disk. VACUUM INTO creates a
// point-in-time snapshot, so writers are not paused.
func (b *Backend) dumpLoop() {
	defer close(b.loopDone)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
