// Package database opens the gorm connections behind the save backends:
// postgres for shared deployments and SQLite for single-player files.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	pingTimeout      = 5 * time.Second
	postgresMaxConns = 10
)

// Manager connects to postgres and falls back to a local SQLite file when
// postgres is unreachable, so a save is never lost to a missing server.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger

	postgres config.PostgresConfig
}

// NewManager creates a manager. sqlitePath is the fallback file.
func NewManager(log zerolog.Logger, pg config.PostgresConfig, sqlitePath string) *Manager {
	return &Manager{
		SqliteFilePath: sqlitePath,
		Logger:         log,
		postgres:       pg,
	}
}

// Connect opens postgres, or the SQLite fallback when postgres fails to
// open or answer a ping.
func (m *Manager) Connect() error {
	db, sqlDB, err := openPostgres(m.postgres.DSN())
	if err == nil {
		m.DB, m.SqlDB = db, sqlDB
		m.IsValid = true
		m.Logger.Info().Str("host", m.postgres.Host).Msg("Connected to postgres")
		return nil
	}

	m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	m.ShouldSaveLocal = true
	m.DB, err = GetSqliteDB(m.SqliteFilePath)
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	if m.SqlDB, err = m.DB.DB(); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	m.IsValid = true
	m.Logger.Info().Str("path", m.SqliteFilePath).Msg("Using local SQLite DB")
	return nil
}

func openPostgres(dsn string) (*gorm.DB, *sql.DB, error) {
	db, err := GetPostgresDB(dsn)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(postgresMaxConns)
	return db, sqlDB, nil
}

// Setup migrates the save and history tables.
func (m *Manager) Setup() error {
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Int("tables", len(model.DatabaseModels)).Msg("Database schema ready")
	return nil
}

func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func GetPostgresDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// MemoryDSN names a shared in-memory SQLite database. Connections opened
// with the same name see the same data.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// sqlitePragmas favour write speed; durability comes from the periodic
// VACUUM INTO dump rather than the journal.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// GetSqliteDB opens a SQLite database, in memory when path is empty.
func GetSqliteDB(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// one connection serializes writers and keeps a memory database alive
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk writes the database to path with VACUUM INTO,
// replacing any existing file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("sqlite file path not set")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	target := "file:" + strings.ReplaceAll(path, "'", "''")
	if err := db.Exec("VACUUM INTO '" + target + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}
