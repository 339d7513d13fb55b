package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	// JobStatusActive jobs are waiting for their next occurrence.
	JobStatusActive JobStatus = "active"
	// JobStatusExhausted jobs have no occurrence left before the
	// year-2200 ceiling. Terminal, but not an error.
	JobStatusExhausted JobStatus = "exhausted"
	// JobStatusDisabled jobs are kept but never dispatched.
	JobStatusDisabled JobStatus = "disabled"
)

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("job not found")

// Job is a webhook delivery bound to a schedule expression.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Expression string     `json:"expression"`
	URL        string     `json:"url"`
	Status     JobStatus  `json:"status"`
	FailCount  int        `json:"fail_count"`
	LastError  string     `json:"last_error,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// JobStore defines the persistence operations the scheduler needs.
type JobStore interface {
	Initialize(ctx context.Context) error
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	Status JobStatus
	Name   string
}

// SQLiteJobStore implements JobStore using SQLite.
type SQLiteJobStore struct {
	db *sql.DB
}

// NewSQLiteJobStore creates a new SQLite-backed job store.
func NewSQLiteJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

// Initialize implements JobStore. The schema matches the storage
// package's migrations; creating it here too keeps in-memory databases
// usable without running the migration tool.
func (s *SQLiteJobStore) Initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		expression TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('active', 'exhausted', 'disabled')),
		fail_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		next_run DATETIME,
		last_run DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, expression, url)
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(next_run) WHERE status = 'active';
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateJob implements JobStore.
func (s *SQLiteJobStore) CreateJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = JobStatusActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, name, expression, url, status, fail_count, last_error, next_run, last_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Expression, job.URL, job.Status,
		job.FailCount, job.LastError, job.NextRun, job.LastRun)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob implements JobStore.
func (s *SQLiteJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, expression, url, status, fail_count, COALESCE(last_error, ''),
		       next_run, last_run, created_at, updated_at
		FROM schedules WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// UpdateJob implements JobStore.
func (s *SQLiteJobStore) UpdateJob(ctx context.Context, job *Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET name = ?, expression = ?, url = ?, status = ?, fail_count = ?,
		    last_error = ?, next_run = ?, last_run = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		job.Name, job.Expression, job.URL, job.Status, job.FailCount,
		job.LastError, job.NextRun, job.LastRun, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListJobs implements JobStore.
func (s *SQLiteJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	query := `
		SELECT id, name, expression, url, status, fail_count, COALESCE(last_error, ''),
		       next_run, last_run, created_at, updated_at
		FROM schedules WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Name != "" {
		query += " AND name = ?"
		args = append(args, filter.Name)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob implements JobStore.
func (s *SQLiteJobStore) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var nextRun, lastRun sql.NullTime
	err := row.Scan(&j.ID, &j.Name, &j.Expression, &j.URL, &j.Status,
		&j.FailCount, &j.LastError, &nextRun, &lastRun, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextRun.Valid {
		j.NextRun = &nextRun.Time
	}
	if lastRun.Valid {
		j.LastRun = &lastRun.Time
	}
	return &j, nil
}
