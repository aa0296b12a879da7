// Package database opens the SQLite file behind the sqlite store driver and
// keeps its schema current.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // pure Go sqlite driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means a migration failed halfway and needs manual repair.
var ErrDirtySchema = errors.New("database schema is dirty")

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// DB is the shared SQLite handle.
type DB struct {
	SQL  *sql.DB
	Path string
}

// NewDB migrates the file at dbPath, creating it and its directory if
// needed, and opens it.
func NewDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite takes one writer at a time.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{SQL: sqlDB, Path: dbPath}
	if err := db.Ready(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the handle.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// SchemaVersion reports the applied migration version.
func (d *DB) SchemaVersion(ctx context.Context) (version int, dirty bool, err error) {
	err = d.SQL.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// Ready checks the connection and that the schema is not mid-migration.
func (d *DB) Ready(ctx context.Context) error {
	if err := d.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	_, dirty, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return ErrDirtySchema
	}
	return nil
}

// RunMigrations applies the embedded migrations to the file at path.
func RunMigrations(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	slog.Info("database.migrated", "path", path)
	return nil
}
