package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, *SQLiteJobStore) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteJobStore(db)
	err = store.Initialize(context.Background())
	require.NoError(t, err)

	return db, store
}

func testJob(name string) *Job {
	next := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return &Job{
		Name:       name,
		Expression: "Mon..Fri 9:00",
		URL:        "https://example.com/hook",
		Status:     JobStatusActive,
		NextRun:    &next,
	}
}

func TestSQLiteJobStore_Initialize(t *testing.T) {
	_, store := setupTestDB(t)

	// Initializing twice must not error
	err := store.Initialize(context.Background())
	assert.NoError(t, err)
}

func TestSQLiteJobStore_CreateAndGet(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	job := testJob("morning-report")
	require.NoError(t, store.CreateJob(ctx, job))
	assert.NotEmpty(t, job.ID, "CreateJob should assign an ID")

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning-report", got.Name)
	assert.Equal(t, "Mon..Fri 9:00", got.Expression)
	assert.Equal(t, JobStatusActive, got.Status)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(*job.NextRun))
}

func TestSQLiteJobStore_GetNotFound(t *testing.T) {
	_, store := setupTestDB(t)

	_, err := store.GetJob(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteJobStore_DuplicateRejected(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, testJob("dup")))
	err := store.CreateJob(ctx, testJob("dup"))
	assert.Error(t, err, "same name, expression and URL should violate the unique constraint")
}

func TestSQLiteJobStore_Update(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	job := testJob("update-me")
	require.NoError(t, store.CreateJob(ctx, job))

	job.Status = JobStatusExhausted
	job.NextRun = nil
	job.FailCount = 3
	job.LastError = "webhook returned status 500"
	require.NoError(t, store.UpdateJob(ctx, job))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusExhausted, got.Status)
	assert.Nil(t, got.NextRun)
	assert.Equal(t, 3, got.FailCount)
	assert.Equal(t, "webhook returned status 500", got.LastError)
}

func TestSQLiteJobStore_UpdateNotFound(t *testing.T) {
	_, store := setupTestDB(t)

	job := testJob("ghost")
	job.ID = "missing"
	err := store.UpdateJob(context.Background(), job)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteJobStore_ListFiltered(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	active := testJob("active-one")
	require.NoError(t, store.CreateJob(ctx, active))

	disabled := testJob("disabled-one")
	disabled.Status = JobStatusDisabled
	require.NoError(t, store.CreateJob(ctx, disabled))

	all, err := store.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := store.ListJobs(ctx, JobFilter{Status: JobStatusActive})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, "active-one", onlyActive[0].Name)

	byName, err := store.ListJobs(ctx, JobFilter{Name: "disabled-one"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, JobStatusDisabled, byName[0].Status)
}

func TestSQLiteJobStore_Delete(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	job := testJob("delete-me")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.DeleteJob(ctx, job.ID))

	_, err := store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = store.DeleteJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
