// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler manages background jobs using cron scheduling.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zerolog.Logger
	timeout time.Duration
	mu      sync.Mutex
	jobs    map[string]cron.EntryID
}

// NewScheduler creates a scheduler whose expressions carry a seconds field.
// Each run is bounded by timeout when it is positive.
func NewScheduler(timeout time.Duration, logger *zerolog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.JobNames())).Msg("starting job scheduler")
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info().Msg("stopping job scheduler")
	return s.cron.Stop()
}

// AddJob registers job under name. Expressions follow cron with an optional
// seconds field, e.g. "0 */5 * * * *" or "@every 1h".
func (s *Scheduler) AddJob(name, cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info().Str("job_name", name).Str("cron_expr", cronExpr).Msg("added scheduled job")
	return nil
}

func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(entryID)
	delete(s.jobs, name)
	s.logger.Info().Str("job_name", name).Msg("removed scheduled job")
	return nil
}

func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) run(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error().Err(err).Str("job_name", name).Dur("took", time.Since(start)).Msg("scheduled job failed")
		return
	}
	s.logger.Debug().Str("job_name", name).Dur("took", time.Since(start)).Msg("completed scheduled job")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
