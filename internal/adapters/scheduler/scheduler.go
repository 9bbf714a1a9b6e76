// Package scheduler runs named periodic jobs that refresh gauges.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Job names registered by RegisterDefaults.
const (
	JobStats  = "stats"
	JobSystem = "system"
)

// JobFunc is the body of a periodic job.
type JobFunc func(ctx context.Context)

// StatsProvider exposes service counters. Reading them refreshes the
// matching gauges as a side effect.
type StatsProvider interface {
	GetStats() map[string]any
}

type job struct {
	every time.Duration
	fn    JobFunc
}

// Scheduler wraps a gocron scheduler with named jobs.
type Scheduler struct {
	logger logger.Logger
	loc    *time.Location

	mu      sync.Mutex
	cron    *gocron.Scheduler
	jobs    map[string]job
	started bool
	cancel  context.CancelFunc
}

// New creates a scheduler with no jobs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: logger.Get().Named("scheduler"),
		loc:    time.UTC,
		jobs:   make(map[string]job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job to run every interval once the scheduler starts.
func (s *Scheduler) Add(name string, every time.Duration, fn JobFunc) error {
	if name == "" || fn == nil || every <= 0 {
		return fmt.Errorf("%w: name=%q every=%s", ErrInvalidJob, name, every)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = job{every: every, fn: fn}
	return nil
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every registered job. Jobs receive a context that is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cron := gocron.NewScheduler(s.loc)
	cron.SingletonModeAll()

	for name, j := range s.jobs {
		if _, err := cron.Every(j.every).Tag(name).Do(s.run, jobCtx, name, j.fn); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	cron.StartAsync()
	s.cron = cron
	s.cancel = cancel
	s.started = true

	s.logger.Info(ctx, "scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts the scheduler and waits for it to stop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	s.cron.Stop()
	s.started = false
	s.logger.Info(context.Background(), "scheduler stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.run(ctx, name, j.fn)
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "job panicked", logger.String("job", name), logger.Any("panic", r))
		}
	}()

	start := time.Now()
	fn(ctx)
	metrics.RecordSchedulerJobRun(name)
	s.logger.Debug(ctx, "job finished", logger.String("job", name), logger.Duration("took", time.Since(start)))
}

// RegisterDefaults adds the stats and system jobs.
func (s *Scheduler) RegisterDefaults(stats StatsProvider, statsEvery, systemEvery time.Duration) error {
	if err := s.Add(JobStats, statsEvery, StatsJob(stats)); err != nil {
		return err
	}
	return s.Add(JobSystem, systemEvery, SystemJob())
}

// StatsJob polls the provider so its gauges stay current between scrapes.
func StatsJob(p StatsProvider) JobFunc {
	return func(_ context.Context) {
		stats := p.GetStats()
		if n, ok := stats["queueLength"].(int); ok {
			metrics.UpdateQueueSize(n)
		}
	}
}

// SystemJob samples runtime memory, goroutines and the latest GC pause.
func SystemJob() JobFunc {
	var lastGC uint32
	var mu sync.Mutex
	return func(_ context.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		metrics.UpdateSystemMemoryUsage(m.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

		mu.Lock()
		defer mu.Unlock()
		if m.NumGC != lastGC {
			pause := m.PauseNs[(m.NumGC+255)%256]
			metrics.RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
			lastGC = m.NumGC
		}
	}
}
