// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are creating the
// in-memory DB, seeding it from the last dump and the periodic dump itself.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/database"
	"github.com/opencity/sandbox/internal/model"
	gormstorage "github.com/opencity/sandbox/internal/storage/gorm"
	"github.com/opencity/sandbox/pkg/core"
	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend. Each backend gets its own
// in-memory database.
func New(cfg config.SQLiteConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := database.GetSqliteDB(database.MemoryDSN("citysim-" + uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:      db,
		cfg:     cfg,
		log:     logger,
	}, nil
}

// Init migrates the in-memory DB, seeds it from the last dump and starts the
// dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if err := b.restore(); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes the GORM backend and writes a
// final dump.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.Path != "" {
		if err := b.Dump(); err != nil {
			return err
		}
	}

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveGame writes the save and dumps immediately so a crash cannot lose it.
func (b *Backend) SaveGame(save *core.SaveGame) error {
	if err := b.Backend.SaveGame(save); err != nil {
		return err
	}
	if b.cfg.Path == "" {
		return nil
	}
	return b.Dump()
}

// Dump writes the in-memory database to cfg.Path.
func (b *Backend) Dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	tmp := b.cfg.Path + ".tmp"
	if err := database.DumpMemoryDBToDisk(b.db, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, b.cfg.Path)
}

// restore copies save slots and mission results of an earlier dump into the
// in-memory DB.
func (b *Backend) restore() error {
	if b.cfg.Path == "" {
		return nil
	}
	if _, err := os.Stat(b.cfg.Path); os.IsNotExist(err) {
		return nil
	}

	disk, err := database.GetSqliteDB(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open dump %s: %w", b.cfg.Path, err)
	}
	defer func() {
		if sqlDB, err := disk.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	var slots []model.SaveSlot
	if disk.Migrator().HasTable(&model.SaveSlot{}) {
		if err := disk.Find(&slots).Error; err != nil {
			return fmt.Errorf("failed to read dumped saves: %w", err)
		}
	}
	var results []model.MissionResult
	if disk.Migrator().HasTable(&model.MissionResult{}) {
		if err := disk.Find(&results).Error; err != nil {
			return fmt.Errorf("failed to read dumped mission results: %w", err)
		}
	}

	if len(slots) > 0 {
		if err := b.db.Create(&slots).Error; err != nil {
			return fmt.Errorf("failed to restore saves: %w", err)
		}
	}
	if len(results) > 0 {
		if err := b.db.Create(&results).Error; err != nil {
			return fmt.Errorf("failed to restore mission results: %w", err)
		}
	}
	b.log.Info("Restored SQLite dump", "path", b.cfg.Path, "saves", len(slots), "missionResults", len(results))
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
