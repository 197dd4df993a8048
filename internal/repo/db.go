// Package repo implements the durable side of the feed system, backed by
// GORM (SQLite or Postgres) or MongoDB. This file contains connection
// bootstrapping and schema migrations for the SQL backends.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// sqlitePragmas run once after every OpenSQLite.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) a SQLite database at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	tune(db, 10)
	return db, instrument(db)
}

// OpenPostgres connects to Postgres using a libpq-style DSN or URL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	tune(db, 32)
	return db, instrument(db)
}

func tune(db *gorm.DB, maxOpen int) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// instrument attaches OpenTelemetry spans to every GORM statement. Spans go
// to the global tracer provider, so they are no-ops until tracing is set up.
func instrument(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates the feed log and post tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.FeedLogEntry{},
		&domain.StoredPost{},
	)
}

// AutoMigrateDevStack additionally creates the tables backing the
// development collaborators.
func AutoMigrateDevStack(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	return db.AutoMigrate(
		&domain.User{},
		&domain.Follow{},
		&domain.ShortURL{},
	)
}
