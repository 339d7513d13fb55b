package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"calsched/internal/metrics"
	"calsched/internal/worker"
)

// maxIdleWait bounds the scheduling loop's sleep so newly loaded or
// far-future jobs are re-evaluated periodically.
const maxIdleWait = 24 * time.Hour

// Scheduler tracks jobs, sleeps until the soonest next occurrence, and
// hands due jobs to the worker pool for webhook delivery.
type Scheduler struct {
	store    JobStore
	runs     RunRecorder
	pool     *worker.Pool
	notifier Notifier
	logger   *log.Logger

	jobMu     sync.Mutex
	jobs      map[string]*Job
	schedules map[string]Schedule

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wakeup chan struct{}

	// Overridable for tests.
	now func() time.Time
}

// NewScheduler loads persisted jobs and compiles their expressions.
// Jobs whose stored expression no longer parses are disabled rather
// than dropped.
func NewScheduler(ctx context.Context, store JobStore, runs RunRecorder, pool *worker.Pool, notifier Notifier, logger *log.Logger) (*Scheduler, error) {
	cctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		store:     store,
		runs:      runs,
		pool:      pool,
		notifier:  notifier,
		logger:    logger,
		jobs:      make(map[string]*Job),
		schedules: make(map[string]Schedule),
		ctx:       cctx,
		cancel:    cancel,
		wakeup:    make(chan struct{}, 1),
		now:       time.Now,
	}
	if err := s.loadJobs(cctx); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) loadJobs(ctx context.Context) error {
	jobs, err := s.store.ListJobs(ctx, JobFilter{})
	if err != nil {
		return err
	}
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	for _, job := range jobs {
		sched, err := ParseSchedule(job.Expression)
		if err != nil {
			s.logger.Printf("disabling job %s (%s): %v", job.ID, job.Expression, err)
			job.Status = JobStatusDisabled
			job.LastError = err.Error()
			if err := s.store.UpdateJob(ctx, job); err != nil {
				return err
			}
			s.jobs[job.ID] = job
			continue
		}
		if job.Status == JobStatusActive && job.NextRun == nil {
			s.rescheduleLocked(job, sched, s.now())
			if err := s.store.UpdateJob(ctx, job); err != nil {
				return err
			}
		}
		s.jobs[job.ID] = job
		s.schedules[job.ID] = sched
	}
	return nil
}

// AddJob registers a new job or refreshes an existing one with the
// same name, expression and URL (deduplication, as for an agent that
// re-posts its config on every start).
func (s *Scheduler) AddJob(ctx context.Context, name, expression, url string) (*Job, error) {
	sched, err := ParseSchedule(expression)
	if err != nil {
		metrics.ExpressionsRejected.Inc()
		return nil, err
	}
	metrics.ExpressionsCompiled.Inc()

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	now := s.now()
	for _, job := range s.jobs {
		if job.Name == name && job.Expression == expression && job.URL == url {
			job.FailCount = 0
			job.LastError = ""
			s.rescheduleLocked(job, sched, now)
			if err := s.store.UpdateJob(ctx, job); err != nil {
				return nil, err
			}
			s.schedules[job.ID] = sched
			s.signalWakeup()
			return job, nil
		}
	}

	job := &Job{
		Name:       name,
		Expression: expression,
		URL:        url,
		Status:     JobStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.rescheduleLocked(job, sched, now)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.jobs[job.ID] = job
	s.schedules[job.ID] = sched
	s.signalWakeup()
	return job, nil
}

// RemoveJob deletes a job from the store and the in-memory set.
func (s *Scheduler) RemoveJob(ctx context.Context, id string) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	delete(s.jobs, id)
	delete(s.schedules, id)
	s.signalWakeup()
	return nil
}

// GetJob returns the in-memory view of a job.
func (s *Scheduler) GetJob(id string) (*Job, bool) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// ListJobs returns a snapshot of all jobs.
func (s *Scheduler) ListJobs() []*Job {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs
}

// rescheduleLocked computes a job's next occurrence after ref. An
// exhausted schedule is a normal terminal outcome: the job stays
// around, marked exhausted, and will never be dispatched again.
func (s *Scheduler) rescheduleLocked(job *Job, sched Schedule, ref time.Time) {
	next, ok := sched.Next(ref)
	if !ok {
		job.Status = JobStatusExhausted
		job.NextRun = nil
		metrics.JobsExhausted.Inc()
		s.logger.Printf("job %s (%s) has no further occurrences", job.Name, job.Expression)
		return
	}
	metrics.OccurrencesComputed.Inc()
	job.Status = JobStatusActive
	job.NextRun = &next
}

func (s *Scheduler) signalWakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for it to exit. Tasks already handed
// to the worker pool are the pool's to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		wait := s.untilNextJob()
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatchDue()
		case <-s.wakeup:
			timer.Stop()
		}
	}
}

// untilNextJob returns how long to sleep before the soonest active
// job is due.
func (s *Scheduler) untilNextJob() time.Duration {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	wait := maxIdleWait
	now := s.now()
	for _, job := range s.jobs {
		if job.Status != JobStatusActive || job.NextRun == nil {
			continue
		}
		if d := job.NextRun.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// dispatchDue hands every due job to the worker pool and advances its
// schedule. A full pool queue leaves NextRun in the past, so the job
// is retried on the next loop pass instead of being lost.
func (s *Scheduler) dispatchDue() {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	now := s.now()
	for id, job := range s.jobs {
		if job.Status != JobStatusActive || job.NextRun == nil || job.NextRun.After(now) {
			continue
		}
		occurrence := *job.NextRun
		task := newWebhookTask(s, *job, occurrence)
		if !s.pool.Submit(task) {
			s.logger.Printf("worker queue full, delaying job %s", job.Name)
			continue
		}
		metrics.JobsDispatched.Inc()
		job.LastRun = &occurrence
		s.rescheduleLocked(job, s.schedules[id], now)
		if err := s.store.UpdateJob(s.ctx, job); err != nil {
			s.logger.Printf("failed to persist job %s: %v", job.ID, err)
		}
	}
}

// recordResult is called by webhook tasks once delivery settles. It
// updates the job's failure bookkeeping and appends to the run history.
func (s *Scheduler) recordResult(jobID string, occurrence time.Time, duration time.Duration, deliveryErr error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job, ok := s.jobs[jobID]
	if ok {
		if deliveryErr != nil {
			job.FailCount++
			job.LastError = deliveryErr.Error()
		} else {
			job.FailCount = 0
			job.LastError = ""
		}
		if err := s.store.UpdateJob(s.ctx, job); err != nil {
			s.logger.Printf("failed to persist job %s: %v", job.ID, err)
		}
	}
	if s.runs != nil {
		run := Run{
			JobID:       jobID,
			ScheduledAt: occurrence,
			FiredAt:     s.now(),
			Duration:    duration,
		}
		if deliveryErr != nil {
			run.Outcome = RunOutcomeFailed
			run.Error = deliveryErr.Error()
		} else {
			run.Outcome = RunOutcomeDelivered
		}
		if err := s.runs.RecordRun(s.ctx, run); err != nil {
			s.logger.Printf("failed to record run for job %s: %v", jobID, err)
		}
	}
}
