package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus reports one applied migration version.
type MigrationStatus struct {
	Version int64
	Dirty   bool
}

// Migrate applies all pending migrations to db.
func Migrate(db *sql.DB) error {
	sourceInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceInstance, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrationStatusList returns the applied migration state. The sqlite
// driver keeps a single-row schema_migrations table.
func (s *Store) MigrationStatusList(ctx context.Context) ([]MigrationStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, dirty FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration status: %w", err)
	}
	defer rows.Close()

	var statuses []MigrationStatus
	for rows.Next() {
		var st MigrationStatus
		if err := rows.Scan(&st.Version, &st.Dirty); err != nil {
			return nil, fmt.Errorf("failed to scan migration status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}
