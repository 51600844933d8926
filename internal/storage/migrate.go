package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the schema up to date. It is safe to call on every start.
func (db *DB) migrate() error {
	if err := db.setAsideLegacyExpenses(); err != nil {
		return err
	}

	driver, err := sqlitemigrate.WithInstance(db.conn, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close is not called: the sqlite driver would close the shared connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// setAsideLegacyExpenses renames a single-tenant expenses table (no user_id
// column) so the multi-tenant schema can be created in its place.
func (db *DB) setAsideLegacyExpenses() error {
	var tables int
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'expenses'",
	).Scan(&tables); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if tables == 0 {
		return nil
	}

	var ownerColumns int
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('expenses') WHERE name = 'user_id'",
	).Scan(&ownerColumns); err != nil {
		return fmt.Errorf("inspect expenses table: %w", err)
	}
	if ownerColumns > 0 {
		return nil
	}

	if _, err := db.conn.Exec("ALTER TABLE expenses RENAME TO expenses_legacy"); err != nil {
		return fmt.Errorf("rename legacy expenses table: %w", err)
	}
	return nil
}
