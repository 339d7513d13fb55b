// Package storage owns the SQLite database: opening it, migrating the
// schema, and persisting the delivery run history.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"calsched/internal/scheduler"
)

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies
// pending migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	if path == ":memory:" {
		// WAL requires a file; in-memory databases use the default journal.
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer, and an in-memory
	// database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for stores layered on top.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends one delivery outcome to the run history.
func (s *Store) RecordRun(ctx context.Context, run scheduler.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (job_id, scheduled_at, fired_at, duration_ms, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.JobID, run.ScheduledAt, run.FiredAt,
		run.Duration.Milliseconds(), string(run.Outcome), run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a job, newest first.
func (s *Store) ListRuns(ctx context.Context, jobID string, limit int) ([]scheduler.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, scheduled_at, fired_at, duration_ms, outcome, COALESCE(error, '')
		FROM runs WHERE job_id = ?
		ORDER BY fired_at DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []scheduler.Run
	for rows.Next() {
		var run scheduler.Run
		var outcome string
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.JobID, &run.ScheduledAt, &run.FiredAt,
			&durationMS, &outcome, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Outcome = scheduler.RunOutcome(outcome)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneRuns deletes run history older than the retention window and
// returns the number of rows removed.
func (s *Store) PruneRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE fired_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
