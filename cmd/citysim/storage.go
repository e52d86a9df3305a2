package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/logging"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/internal/storage/memory"
	pgstorage "github.com/opencity/sandbox/internal/storage/postgres"
	sqlitestorage "github.com/opencity/sandbox/internal/storage/sqlite"
	wsstorage "github.com/opencity/sandbox/internal/storage/websocket"
)

// createStorageBackend builds the backend selected by storageCfg.Type. Unknown
// types fall back to memory.
func createStorageBackend(storageCfg config.StorageConfig, level string, logWriter io.Writer, logger *slog.Logger, start time.Time) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		fallback := logging.SessionFilePath(filepath.Dir(storageCfg.SQLite.Path), AppName, "db", start)
		logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return pgstorage.New(storageCfg.Postgres, fallback, logging.NewZerolog(logWriter, level, "database"), logger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return backend, nil

	case "websocket":
		logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return wsstorage.New(storageCfg.WebSocket, logger), nil

	default:
		if storageCfg.Type != "" && storageCfg.Type != "memory" {
			logger.Warn("Unknown storage type, using memory", "type", storageCfg.Type)
		}
		logger.Info("Memory storage backend initialized", "dir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil
	}
}
