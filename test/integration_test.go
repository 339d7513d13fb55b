package test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calsched/internal/scheduler"
	"calsched/internal/storage"
	"calsched/internal/worker"
)

func readJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Full path: job persisted, dispatched through the worker pool, webhook
// delivered, run recorded, schedule advanced.
func TestSchedulerIntegration(t *testing.T) {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	jobStore := scheduler.NewSQLiteJobStore(store.DB())
	require.NoError(t, jobStore.Initialize(context.Background()))

	logger := log.New(io.Discard, "", 0)
	pool := worker.NewPool(1, 8, 3, 10*time.Millisecond, logger)
	pool.Start()
	defer pool.Stop()

	delivered := make(chan scheduler.WebhookPayload, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload scheduler.WebhookPayload
		if err := readJSON(r, &payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		delivered <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	notifier := scheduler.NewWebhookNotifier(5 * time.Second)
	sched, err := scheduler.NewScheduler(context.Background(), jobStore, store, pool, notifier, logger)
	require.NoError(t, err)
	sched.Start()
	defer sched.Stop()

	// Every second, so the loop fires without manual clock tricks.
	job, err := sched.AddJob(context.Background(), "e2e", "*:*:*", receiver.URL)
	require.NoError(t, err)
	require.NotNil(t, job.NextRun)

	var payload scheduler.WebhookPayload
	select {
	case payload = <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, "e2e", payload.Name)

	// Run history follows delivery; poll briefly for the row.
	deadline := time.Now().Add(2 * time.Second)
	for {
		runs, err := store.ListRuns(context.Background(), job.ID, 10)
		require.NoError(t, err)
		if len(runs) > 0 {
			assert.Equal(t, scheduler.RunOutcomeDelivered, runs[0].Outcome)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run was not recorded")
		}
		time.Sleep(50 * time.Millisecond)
	}

	updated, ok := sched.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, scheduler.JobStatusActive, updated.Status)
	require.NotNil(t, updated.LastRun)
}

// Jobs whose webhook keeps failing accumulate a fail count but stay
// scheduled.
func TestSchedulerIntegration_FailingWebhook(t *testing.T) {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	jobStore := scheduler.NewSQLiteJobStore(store.DB())
	require.NoError(t, jobStore.Initialize(context.Background()))

	logger := log.New(io.Discard, "", 0)
	pool := worker.NewPool(1, 8, 2, 10*time.Millisecond, logger)
	pool.Start()
	defer pool.Stop()

	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer receiver.Close()

	notifier := scheduler.NewWebhookNotifier(5 * time.Second)
	sched, err := scheduler.NewScheduler(context.Background(), jobStore, store, pool, notifier, logger)
	require.NoError(t, err)
	sched.Start()
	defer sched.Stop()

	job, err := sched.AddJob(context.Background(), "failing", "*:*:*", receiver.URL)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for {
		updated, ok := sched.GetJob(job.ID)
		require.True(t, ok)
		if updated.FailCount > 0 {
			assert.Contains(t, updated.LastError, "500")
			assert.Equal(t, scheduler.JobStatusActive, updated.Status)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failure was never recorded")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
