// Package scheduler runs pipeline jobs on fixed intervals.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a runnable unit of pipeline work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job      Job
	interval time.Duration
}

// Scheduler drives each registered job on its own cadence. Every job gets
// an immediate first run, then runs once per interval until the context is
// cancelled. Job errors are logged and never stop the loop.
type Scheduler struct {
	logger  *slog.Logger
	entries []entry
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a job to run every interval.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

// Start launches one loop per job and blocks until the context is cancelled
// and all in-flight runs have returned.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	s.logger.Info("job scheduled",
		"job", e.job.Name(),
		"interval", e.interval,
	)

	s.runOnce(ctx, e.job)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job loop stopped", "job", e.job.Name())
			return
		case <-time.After(e.interval):
			s.runOnce(ctx, e.job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job run failed", "job", job.Name(), "error", err)
	}
}
