// Package postgres implements the storage.Backend interface on PostgreSQL.
// When the server cannot be reached it falls back to a local SQLite file so
// saves are never lost.
package postgres

import (
	"log/slog"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/database"
	gormstorage "github.com/opencity/sandbox/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend with a managed postgres connection.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
	logger  *slog.Logger
}

// New creates a postgres backend. fallbackPath is the SQLite file used when
// postgres is unavailable.
func New(cfg config.PostgresConfig, fallbackPath string, dbLog zerolog.Logger, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		manager: database.NewManager(dbLog, cfg, fallbackPath),
		logger:  logger,
	}
}

// Init connects, migrates and starts the embedded GORM backend.
func (b *Backend) Init() error {
	if err := b.manager.Connect(); err != nil {
		return err
	}
	if b.manager.ShouldSaveLocal {
		b.logger.Warn("Postgres unavailable, saving to local SQLite", "path", b.manager.SqliteFilePath)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.manager.DB,
		Logger: b.logger,
	})
	return b.Backend.Init()
}

// Close flushes the embedded backend and closes the connection.
func (b *Backend) Close() error {
	if b.Backend != nil {
		if err := b.Backend.Close(); err != nil {
			return err
		}
	}
	return b.manager.Close()
}

// Local reports whether saves go to the SQLite fallback.
func (b *Backend) Local() bool {
	return b.manager.ShouldSaveLocal
}
