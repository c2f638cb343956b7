// Package scheduler runs the cog's periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultInterval = 60 * time.Second

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobStatus is a snapshot of a registered job.
type JobStatus struct {
	Name          string     `json:"name"`
	Schedule      string     `json:"schedule"`
	NextRunAt     time.Time  `json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

type job struct {
	status JobStatus
	fn     JobFunc
}

// Scheduler ticks on an interval and runs the registered jobs that are due.
type Scheduler struct {
	parser   cron.Parser
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often the scheduler checks for due jobs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the clock used to decide which jobs are due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		interval: defaultInterval,
		jobs:     make(map[string]*job),
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a named job on a cron schedule. The first run is the next
// schedule time after now.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("job needs a name and a function")
	}
	next, err := s.CalculateNextRun(spec, s.now())
	if err != nil {
		return err
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	s.jobs[name] = &job{
		status: JobStatus{Name: name, Schedule: spec, NextRunAt: next},
		fn:     fn,
	}
	return nil
}

// Jobs returns a snapshot of every registered job, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every job whose next run time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.jobsMu.Lock()
	var due []string
	for name, j := range s.jobs {
		if !j.status.NextRunAt.After(now) {
			due = append(due, name)
		}
	}
	s.jobsMu.Unlock()
	sort.Strings(due)

	for _, name := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.run(ctx, name, now); err != nil {
			s.logger.Error("scheduled job failed",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// RunNow runs a job immediately, outside its schedule. The next scheduled run is recomputed.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.run(ctx, name, s.now())
}

// run executes a job and updates its timestamps. A job already in flight is skipped.
func (s *Scheduler) run(ctx context.Context, name string, now time.Time) error {
	s.jobsMu.Lock()
	j, ok := s.jobs[name]
	s.jobsMu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}

	if !s.tryAcquire(name) {
		return nil // already running (dedup)
	}
	defer s.releaseJob(name)

	s.logger.Info("running scheduled job", slog.String("job", name))
	err := j.fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}

	next, perr := s.CalculateNextRun(j.status.Schedule, now)
	if perr != nil {
		return fmt.Errorf("calculate next run for job %q: %w", name, perr)
	}

	s.jobsMu.Lock()
	ran := now
	j.status.LastRunAt = &ran
	j.status.NextRunAt = next
	j.status.LastRunStatus = status
	s.jobsMu.Unlock()

	return err
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
