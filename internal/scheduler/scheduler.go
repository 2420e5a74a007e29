// Package scheduler runs periodic soil sampling and retention jobs
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Jobs is the work the scheduler triggers
type Jobs interface {
	SampleSoil(ctx context.Context) (entities.Reading, error)
	PruneReadings(ctx context.Context, retention time.Duration) (int64, error)
}

// Config describes when each job runs
type Config struct {
	SampleSchedule string
	PruneSchedule  string
	Retention      time.Duration
	JobTimeout     time.Duration
}

// Scheduler wraps a cron runner with the soil monitor jobs
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	cfg  Config
}

// New parses the schedules and registers the jobs. An empty schedule disables its job.
func New(jobs Jobs, cfg Config) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		jobs: jobs,
		cfg:  cfg,
	}

	if cfg.SampleSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.SampleSchedule, s.runSample); err != nil {
			return nil, fmt.Errorf("failed to set up sampling job %q: %w", cfg.SampleSchedule, err)
		}
	}
	if cfg.PruneSchedule != "" && cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(cfg.PruneSchedule, s.runPrune); err != nil {
			return nil, fmt.Errorf("failed to set up pruning job %q: %w", cfg.PruneSchedule, err)
		}
	}
	return s, nil
}

// Start runs one sample immediately and then hands over to the cron schedule
func (s *Scheduler) Start() {
	s.runSample()
	s.cron.Start()
	log.Printf("Scheduler started with %d jobs (sampling %q, pruning %q)",
		len(s.cron.Entries()), s.cfg.SampleSchedule, s.cfg.PruneSchedule)
}

// Stop halts the schedule and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("Scheduler stop timed out: %v", ctx.Err())
	}
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runSample() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.jobs.SampleSoil(ctx); err != nil {
		log.Printf("Scheduled soil sample failed: %v", err)
	}
}

func (s *Scheduler) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.jobs.PruneReadings(ctx, s.cfg.Retention); err != nil {
		log.Printf("Scheduled pruning failed: %v", err)
	}
}
