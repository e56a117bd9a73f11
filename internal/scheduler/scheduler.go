// Package scheduler wires the cron trigger that kicks off the nightly
// matching run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"job-digest/internal/batch"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner is the orchestrator surface the scheduler needs.
type Runner interface {
	Run(ctx context.Context, runDate time.Time) (batch.RunReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	log    zerolog.Logger
}

func New(runner Runner, spec string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		log:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the nightly job and starts the cron loop. Each tick runs
// the batch for the current date; a date already completed or locked by
// another instance is skipped via the run lock.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("cron started")
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("cron stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runDate := time.Now().UTC().Truncate(24 * time.Hour)
	report, err := s.runner.Run(ctx, runDate)
	if err != nil {
		s.log.Error().Err(err).Str("state", string(report.State)).Msg("scheduled run failed")
		return
	}
	s.log.Info().
		Str("state", string(report.State)).
		Int("users_processed", report.UsersProcessed).
		Bool("trustworthy", report.Trustworthy).
		Msg("scheduled run finished")
}
