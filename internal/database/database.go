// Package database opens the application SQLite database and applies
// embedded schema migrations.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dsnParams is appended to every DSN so each pooled connection gets the
// same settings:
//   - _txlock=immediate: write transactions take the write lock up front,
//     so concurrent appends queue on busy_timeout instead of failing when
//     a deferred transaction tries to upgrade its lock.
//   - busy_timeout: writers wait up to 5s for the lock before SQLITE_BUSY.
//   - foreign_keys: SQLite keeps constraint enforcement off by default.
const dsnParams = "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens a SQLite database connection.
// The special path ":memory:" opens an in-process database (used by tests).
func Open(dbPath string) (*sql.DB, error) {
	dsn := "file:" + dbPath + "?" + dsnParams
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise open its own distinct
		// empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate applies all pending embedded migrations.
func Migrate(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// Don't Close() m: the sqlite driver shares the *sql.DB with the caller.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
