package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/pipeline"
)

// Runner starts one complete training run
type Runner interface {
	RunOnce(ctx context.Context, trigger string) (*models.RunResult, error)
}

// Service retrains on a cron schedule. Every tick is an independent run;
// a tick that fires while the previous run is still going is skipped.
type Service struct {
	schedule cron.Schedule
	expr     string
	runner   Runner
	logger   *slog.Logger

	cron  *cron.Cron
	job   cron.Job
	entry cron.EntryID

	mu      sync.Mutex
	ctx     context.Context
	lastRun *time.Time
	lastErr error
}

// NewService validates the cron expression and prepares the scheduler
func NewService(expr string, runner Runner, logger *slog.Logger) (*Service, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		schedule: schedule,
		expr:     expr,
		runner:   runner,
		logger:   logger,
		ctx:      context.Background(),
	}
	cl := cronLogger{logger: logger}
	s.cron = cron.New(cron.WithLogger(cl))
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.execute))
	return s, nil
}

// Start schedules the retrain job. Runs use ctx, so cancelling it stops
// in-flight client calls.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.entry = s.cron.Schedule(s.schedule, s.job)
	s.cron.Start()
	s.logger.Info("Retrain scheduler started", "schedule", s.expr, "next_run", s.NextRun())
}

// Stop stops scheduling and waits for a running job to finish
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Retrain scheduler stopped")
}

// NextRun returns the next activation time
func (s *Service) NextRun() time.Time {
	if s.entry != 0 {
		if e := s.cron.Entry(s.entry); e.Valid() {
			return e.Next
		}
	}
	return s.schedule.Next(time.Now())
}

// LastRun returns when the last run started and how it ended
func (s *Service) LastRun() (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Service) execute() {
	s.mu.Lock()
	ctx := s.ctx
	now := time.Now()
	s.lastRun = &now
	s.mu.Unlock()

	s.logger.Info("Executing scheduled retrain")
	result, err := s.runner.RunOnce(ctx, pipeline.TriggerScheduled)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled retrain failed", "error", err)
		return
	}
	s.logger.Info("Scheduled retrain completed", "run_id", result.RunID, "status", result.Status)
}

// cronLogger routes cron's own messages to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
