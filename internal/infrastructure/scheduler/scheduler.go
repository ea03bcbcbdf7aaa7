// Package scheduler runs periodic background jobs: ranking rebuilds,
// snapshot pruning, and cleanup.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule decides when a job runs.
type Schedule interface {
	// Next returns the next run time after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobResult records one job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes registered jobs.
type Scheduler struct {
	mu sync.RWMutex

	log      *logger.Logger
	timezone *time.Location

	jobs      map[string]*scheduledJob
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	// slots caps the number of concurrently running jobs.
	slots chan struct{}

	metrics  *Metrics
	lastRuns map[string]*JobResult
}

// scheduledJob wraps a Job with its scheduling state.
type scheduledJob struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// Config contains scheduler settings.
type Config struct {
	// Logger for structured logging.
	Logger *logger.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// MaxConcurrentJobs caps how many jobs run at once.
	MaxConcurrentJobs int

	// EnableMetrics enables metrics collection.
	EnableMetrics bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Logger:            logger.Default(),
		Timezone:          time.UTC,
		MaxConcurrentJobs: 5,
		EnableMetrics:     true,
	}
}

// New creates a Scheduler with the given configuration.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 5
	}

	s := &Scheduler{
		log:      config.Logger.With(logger.Component("scheduler")),
		timezone: config.Timezone,
		jobs:     make(map[string]*scheduledJob),
		slots:    make(chan struct{}, config.MaxConcurrentJobs),
		lastRuns: make(map[string]*JobResult),
	}

	if config.EnableMetrics {
		s.metrics = NewMetrics()
	}

	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	now := time.Now().In(s.timezone)
	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(now),
	}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", sj.nextRun),
	)

	return nil
}

// EnableJob enables a job by name.
func (s *Scheduler) EnableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	sj.enabled = true
	sj.nextRun = sj.schedule.Next(time.Now().In(s.timezone))
	return nil
}

// DisableJob disables a job by name.
func (s *Scheduler) DisableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	sj.enabled = false
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", logger.Int("jobs", jobCount))

	s.wg.Add(1)
	go s.runLoop()

	return nil
}

// Stop gracefully stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.log.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunJobs()
		}
	}
}

func (s *Scheduler) checkAndRunJobs() {
	now := time.Now().In(s.timezone)

	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, sj := range s.jobs {
		if sj.enabled && !sj.nextRun.IsZero() && now.After(sj.nextRun) {
			// Advance before running so a slow job is not re-queued.
			sj.lastRun = now
			sj.nextRun = sj.schedule.Next(now)
			sj.runCount++
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go s.runJob(sj)
	}
}

func (s *Scheduler) runJob(sj *scheduledJob) {
	defer s.wg.Done()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-s.ctx.Done():
		return
	}

	jobName := sj.job.Name()
	startedAt := time.Now()
	s.log.Debug("job started", logger.String("job", jobName))

	err := sj.job.Run(s.ctx)
	completedAt := time.Now()
	duration := completedAt.Sub(startedAt)

	result := &JobResult{
		JobName:     jobName,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    duration,
		Success:     err == nil,
		Error:       err,
	}

	if s.metrics != nil {
		s.metrics.RecordExecution(jobName, duration, err == nil)
	}

	s.mu.Lock()
	if err != nil {
		sj.failCount++
	}
	s.lastRuns[jobName] = result
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed",
			logger.String("job", jobName),
			logger.Duration("duration", duration),
			logger.Err(err),
		)
	} else {
		s.log.Info("job completed",
			logger.String("job", jobName),
			logger.Duration("duration", duration),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow immediately executes a job by name, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	sj, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	startedAt := time.Now()
	err := sj.job.Run(ctx)
	completedAt := time.Now()

	result := &JobResult{
		JobName:     jobName,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}

	if s.metrics != nil {
		s.metrics.RecordExecution(jobName, result.Duration, err == nil)
	}

	s.mu.Lock()
	s.lastRuns[jobName] = result
	s.mu.Unlock()

	return result, err
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns information about all registered jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Enabled:     sj.enabled,
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  s.lastRuns[name],
		})
	}
	return infos
}

// Metrics returns the scheduler metrics, or nil when disabled.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks job execution counters.
type Metrics struct {
	mu sync.RWMutex

	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	TotalDuration   time.Duration

	ExecutionsByJob map[string]int64
	FailuresByJob   map[string]int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		ExecutionsByJob: make(map[string]int64),
		FailuresByJob:   make(map[string]int64),
	}
}

// RecordExecution records one job execution.
func (m *Metrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalExecutions++
	m.TotalDuration += duration
	m.ExecutionsByJob[jobName]++
	if success {
		m.TotalSuccesses++
	} else {
		m.TotalFailures++
		m.FailuresByJob[jobName]++
	}
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg time.Duration
	var successRate float64
	if m.TotalExecutions > 0 {
		avg = m.TotalDuration / time.Duration(m.TotalExecutions)
		successRate = float64(m.TotalSuccesses) / float64(m.TotalExecutions)
	}

	return MetricsSnapshot{
		TotalExecutions: m.TotalExecutions,
		TotalSuccesses:  m.TotalSuccesses,
		TotalFailures:   m.TotalFailures,
		SuccessRate:     successRate,
		AverageDuration: avg,
	}
}

// MetricsSnapshot is a point-in-time copy of scheduler metrics.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when registering a nil job.
	ErrNilJob = fmt.Errorf("job cannot be nil")

	// ErrNilSchedule is returned when registering a job without a schedule.
	ErrNilSchedule = fmt.Errorf("schedule cannot be nil")

	// ErrJobAlreadyExists is returned when a job name is already taken.
	ErrJobAlreadyExists = fmt.Errorf("job already exists")

	// ErrJobNotFound is returned when a job name is unknown.
	ErrJobNotFound = fmt.Errorf("job not found")

	// ErrSchedulerAlreadyRunning is returned by Start on a running scheduler.
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")

	// ErrSchedulerNotRunning is returned by Stop on a stopped scheduler.
	ErrSchedulerNotRunning = fmt.Errorf("scheduler is not running")
)
