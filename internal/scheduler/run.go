package scheduler

import (
	"context"
	"time"
)

// RunOutcome is the terminal state of one webhook delivery.
type RunOutcome string

const (
	RunOutcomeDelivered RunOutcome = "delivered"
	RunOutcomeFailed    RunOutcome = "failed"
)

// Run is one delivery attempt outcome, kept as history.
type Run struct {
	ID          int64         `json:"id"`
	JobID       string        `json:"job_id"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	FiredAt     time.Time     `json:"fired_at"`
	Duration    time.Duration `json:"duration"`
	Outcome     RunOutcome    `json:"outcome"`
	Error       string        `json:"error,omitempty"`
}

// RunRecorder appends delivery outcomes to persistent history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}
