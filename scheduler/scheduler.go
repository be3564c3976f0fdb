package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Job interface {
	Run()
}

type SchedulerParams struct {
	Logger zerolog.Logger
}

// NewScheduler returns a scheduler that never starts a job while its previous
// run is still going, and recovers job panics.
func NewScheduler(params SchedulerParams) *Scheduler {
	logger := cronLogger{params.Logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		logger: params.Logger,
		jobs:   make(map[cron.EntryID]Job),
	}
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[cron.EntryID]Job
}

// Start the scheduler in its own routine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for running jobs to complete.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.cron.AddJob(schedule, job)
	if err != nil {
		return fmt.Errorf("could not add job with schedule %q: %w", schedule, err)
	}
	s.jobs[entry] = job

	s.logger.Info().
		Str("schedule", schedule).
		Time("next", s.cron.Entry(entry).Next).
		Msg("job scheduled")
	return nil
}

func (s *Scheduler) RemoveJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, entry)
	}
}

// Reschedule replaces every job with job on the new schedule. The previous
// jobs are kept if schedule is invalid.
func (s *Scheduler) Reschedule(schedule string, job Job) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	s.RemoveJobs()
	return s.AddJob(schedule, job)
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// NextRun returns the earliest next activation, or the zero time when no job
// is scheduled or the scheduler is not started.
func (s *Scheduler) NextRun() time.Time {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if next.IsZero() || (!entry.Next.IsZero() && entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
