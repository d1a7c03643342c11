// Package cron runs the unattended scheduled jobs of the subscription
// engine.
//
// The Scheduler is an explicitly constructed object, not a package-level
// singleton: jobs are injected, the timezone is configured, and every run
// is bracketed by an audit row so a crashed job is always visible in the
// cron_runs trail rather than silently vanishing.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/metrics"
	"github.com/google/uuid"
	robfig "github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run. Jobs are daily or monthly;
// anything running this long is stuck.
const DefaultJobTimeout = 10 * time.Minute

// Job is one schedulable unit of work. Run returns the summary written to
// the audit row; partial progress before an error still lands in it.
type Job interface {
	Name() string
	Run(ctx context.Context) (domain.JobSummary, error)
}

// Scheduler fires registered jobs on fixed schedules in a configured
// timezone and records every run.
type Scheduler struct {
	runner     *robfig.Cron
	runs       domain.CronRunStore
	jobTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	jobs    map[string]*managedJob
	started bool
}

// managedJob pairs a job with its overlap guard. A fire that lands while
// the previous run is still in flight is skipped and counted, never
// stacked.
type managedJob struct {
	job Job

	mu      sync.Mutex
	running bool
}

func (m *managedJob) tryAcquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	return true
}

func (m *managedJob) release() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// New creates a Scheduler pinned to the given location.
func New(runs domain.CronRunStore, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     robfig.New(robfig.WithLocation(loc)),
		runs:       runs,
		jobTimeout: DefaultJobTimeout,
		logger:     logger,
		now:        time.Now,
		jobs:       make(map[string]*managedJob),
	}
}

// Register adds a job on a standard 5-field cron schedule. Call before
// Start; registering the same name twice is a programmer error.
func (s *Scheduler) Register(spec string, job Job) error {
	const op = "cron.register"

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return domain.Invalid(op, fmt.Sprintf("job %q is already registered", name))
	}

	mj := &managedJob{job: job}
	if _, err := s.runner.AddFunc(spec, func() { s.execute(context.Background(), mj) }); err != nil {
		return domain.Invalid(op, fmt.Sprintf("invalid schedule %q for job %q: %v", spec, name, err))
	}
	s.jobs[name] = mj

	s.logger.Debug("registered scheduled job", "job", name, "schedule", spec)
	return nil
}

// Start begins firing schedules. Calling Start again after a successful
// call is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Debug("scheduler already started")
		return
	}
	s.runner.Start()
	s.started = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the schedules and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping scheduler...")
	<-s.runner.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Trigger runs a registered job immediately, outside its schedule. An
// unknown name is a programmer error and the one case allowed to surface
// as an error rather than an audit row.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	const op = "cron.trigger"

	s.mu.Lock()
	mj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return domain.Invalid(op, fmt.Sprintf("unknown job %q", name))
	}

	s.execute(ctx, mj)
	return nil
}

// execute runs one job fire: audit row in, job body with panic recovery,
// audit row out. Job failures are recorded, never propagated — the invoker
// is a timer with no one to catch them.
func (s *Scheduler) execute(ctx context.Context, mj *managedJob) {
	name := mj.job.Name()

	if !mj.tryAcquire() {
		metrics.CronRunSkipped(name)
		s.logger.Warn("skipping job fire, previous run still in flight", "job", name)
		return
	}
	defer mj.release()

	started := s.now()
	run := &domain.CronRun{
		ID:        uuid.New(),
		JobName:   name,
		Status:    domain.CronRunStatusStarted,
		StartedAt: started,
	}
	if err := s.runs.CreateCronRun(ctx, run); err != nil {
		// Without the audit row the run would be invisible; log loudly and
		// still do the work.
		s.logger.Error("failed to record cron run start", "job", name, "error", err)
	}

	logger := s.logger.With("job", name, "run_id", run.ID)
	logger.Info("job started")

	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	summary, err := s.runJob(jobCtx, mj.job)
	duration := s.now().Sub(started)

	status := domain.CronRunStatusCompleted
	if err != nil {
		status = domain.CronRunStatusFailed
		metrics.CronRunFailed(name, duration)
		logger.Error("job failed", "error", err, "duration", duration)
	} else {
		metrics.CronRunCompleted(name, duration)
		logger.Info("job completed",
			"processed", summary.Processed,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"duration", duration,
		)
	}

	details := marshalDetails(summary, err)
	if finishErr := s.runs.FinishCronRun(ctx, run.ID, status, details, s.now()); finishErr != nil {
		logger.Error("failed to record cron run outcome", "error", finishErr)
	}
}

// runJob invokes the job body, converting a panic into a failed run.
func (s *Scheduler) runJob(ctx context.Context, job Job) (summary domain.JobSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// runDetails is the JSON shape of the audit row's details column.
type runDetails struct {
	domain.JobSummary
	Error string `json:"error,omitempty"`
}

func marshalDetails(summary domain.JobSummary, err error) json.RawMessage {
	d := runDetails{JobSummary: summary}
	if err != nil {
		d.Error = err.Error()
	}
	raw, marshalErr := json.Marshal(d)
	if marshalErr != nil {
		return json.RawMessage(fmt.Sprintf(`{"error":%q}`, marshalErr.Error()))
	}
	return raw
}
