// Package scheduler runs reconciliation jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
)

var (
	// ErrSkipped means the job was still running from an earlier trigger.
	ErrSkipped = errors.New("job already running")
	ErrUnknown = errors.New("unknown job")
)

// Job is one periodic task. Schedule is a standard five-field cron spec.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type entry struct {
	job     Job
	id      cron.EntryID
	running atomic.Bool
}

// Scheduler fires jobs from cron. A job never overlaps itself, and at most
// maxConcurrent jobs run at once.
type Scheduler struct {
	cron    *cron.Cron
	workers chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *syncmetrics.Metrics

	mu   sync.RWMutex
	jobs map[string]*entry
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLocation evaluates schedules in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(cron.WithLocation(loc)) }
}

func New(maxConcurrent int, opts ...Option) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		workers: make(chan struct{}, maxConcurrent),
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default(),
		jobs:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Names are unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule, func() { _ = s.execute(e) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name, err)
	}
	e.id = id
	s.jobs[job.Name] = e
	s.logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further triggers, cancels running jobs and waits for them
// until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs a job now, on the caller's goroutine, with the same overlap
// and concurrency rules as a cron firing.
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return s.execute(e)
}

// Next reports when a job fires next; zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.jobs[name]; ok {
		return s.cron.Entry(e.id).Next
	}
	return time.Time{}
}

func (s *Scheduler) execute(e *entry) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if !e.running.CompareAndSwap(false, true) {
		s.metrics.IncSkipped("job_overlap")
		s.logger.Warn("job still running, trigger skipped", "job", e.job.Name)
		return ErrSkipped
	}
	defer e.running.Store(false)

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	start := time.Now()
	err := e.job.Run(s.ctx)
	if err != nil {
		s.logger.Error("job failed", "job", e.job.Name, "duration", time.Since(start), "error", err)
		return err
	}
	s.logger.Info("job completed", "job", e.job.Name, "duration", time.Since(start))
	return nil
}
