package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/service"
	"github.com/feeflow/feeflow-api/pkg/config"
)

type feeGenerator interface {
	GenerateFeesForPeriod(ctx context.Context, req service.GenerateFeesRequest) (*service.GenerationSummary, error)
}

type reminderRunner interface {
	SendDueReminders(ctx context.Context) (*service.ReminderSummary, error)
}

// Scheduler drives the periodic billing jobs: the monthly fee generation
// pass and the daily reminder pass. Jobs run to completion in-process;
// overlap is prevented per job by cron's SkipIfStillRunning wrapper.
type Scheduler struct {
	cron      *cron.Cron
	billing   feeGenerator
	reminders reminderRunner
	logger    *zap.Logger
	cfg       config.BillingConfig
	now       func() time.Time
}

// New constructs the scheduler without starting it.
func New(billing feeGenerator, reminders reminderRunner, cfg config.BillingConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)
	return &Scheduler{
		cron:      c,
		billing:   billing,
		reminders: reminders,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.GenerationCron, s.runGeneration); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ReminderCron, s.runReminders); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("billing scheduler started",
		zap.String("generation_cron", s.cfg.GenerationCron),
		zap.String("reminder_cron", s.cfg.ReminderCron))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("billing scheduler stopped")
}

// runGeneration bills the month the job fires in. There is no catch-up for
// months missed while the process was down; re-running generation by hand
// fills those gaps idempotently.
func (s *Scheduler) runGeneration() {
	now := s.now().UTC()
	summary, err := s.billing.GenerateFeesForPeriod(context.Background(), service.GenerateFeesRequest{
		Month: int(now.Month()),
		Year:  now.Year(),
	})
	if err != nil {
		s.logger.Error("scheduled fee generation failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled fee generation finished",
		zap.Int("generated", summary.Generated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
}

func (s *Scheduler) runReminders() {
	summary, err := s.reminders.SendDueReminders(context.Background())
	if err != nil {
		s.logger.Error("scheduled reminder pass failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled reminder pass finished",
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
}
