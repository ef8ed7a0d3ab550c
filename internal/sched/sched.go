// Package sched runs the ingestion pipeline on a cron schedule.
package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler triggers a run function on a cron expression. Runs never
// overlap; a trigger that fires while a run is in flight is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	running chan struct{}
}

// New creates a scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		running: make(chan struct{}, 1),
	}
}

// Register schedules run on the given cron expression.
func (s *Scheduler) Register(ctx context.Context, spec string, run func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		select {
		case s.running <- struct{}{}:
		default:
			s.logger.Warn().Msg("previous run still in progress, skipping trigger")
			return
		}
		defer func() { <-s.running }()

		run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register schedule %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}
