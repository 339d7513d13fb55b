package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"calsched/internal/metrics"
)

// WebhookPayload is the JSON body posted to a job's URL when it fires.
type WebhookPayload struct {
	JobID        string    `json:"job_id"`
	Name         string    `json:"name"`
	Expression   string    `json:"expression"`
	ScheduledFor time.Time `json:"scheduled_for"`
	FiredAt      time.Time `json:"fired_at"`
}

// Notifier delivers a fired occurrence to its destination.
type Notifier interface {
	Notify(ctx context.Context, url string, payload WebhookPayload) error
}

// WebhookNotifier posts occurrence payloads over HTTP. Any non-2xx
// response is treated as a delivery failure.
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier returns a notifier with the given per-request
// timeout.
func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// webhookTask is the worker-pool unit of work for one fired occurrence.
// It carries a snapshot of the job so delivery is unaffected by
// concurrent edits.
type webhookTask struct {
	scheduler  *Scheduler
	job        Job
	occurrence time.Time
}

func newWebhookTask(s *Scheduler, job Job, occurrence time.Time) *webhookTask {
	return &webhookTask{scheduler: s, job: job, occurrence: occurrence}
}

func (t *webhookTask) ID() string {
	return fmt.Sprintf("%s@%s", t.job.ID, t.occurrence.Format(time.RFC3339))
}

func (t *webhookTask) Process() error {
	s := t.scheduler
	payload := WebhookPayload{
		JobID:        t.job.ID,
		Name:         t.job.Name,
		Expression:   t.job.Expression,
		ScheduledFor: t.occurrence,
		FiredAt:      s.now(),
	}

	start := s.now()
	err := s.notifier.Notify(s.ctx, t.job.URL, payload)
	duration := s.now().Sub(start)
	metrics.WebhookDuration.Observe(duration.Seconds())

	s.recordResult(t.job.ID, t.occurrence, duration, err)
	if err != nil {
		metrics.JobsFailed.Inc()
		return fmt.Errorf("job %s: %w", t.job.Name, err)
	}
	metrics.JobsCompleted.Inc()
	return nil
}
