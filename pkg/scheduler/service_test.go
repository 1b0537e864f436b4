package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/pipeline"
)

type blockingRunner struct {
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
	triggers []string
	mu       sync.Mutex
	err      error
}

func (r *blockingRunner) RunOnce(ctx context.Context, trigger string) (*models.RunResult, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.RunResult{RunID: "run", Status: models.RunStatusPublished}, nil
}

func TestNewServiceRejectsBadExpression(t *testing.T) {
	if _, err := NewService("every tuesday", &blockingRunner{}, config.Discard()); err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
}

func TestNextRun(t *testing.T) {
	s, err := NewService("0 3 * * *", &blockingRunner{}, config.Discard())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	next := s.NextRun()
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("Expected next run at 03:00, got %v", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("Expected next run in the future, got %v", next)
	}
}

func TestExecuteUsesScheduledTrigger(t *testing.T) {
	runner := &blockingRunner{err: errors.New("ingestion failed")}
	s, err := NewService("@hourly", runner, config.Discard())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	s.job.Run()

	if runner.calls.Load() != 1 {
		t.Fatalf("Expected one run, got %d", runner.calls.Load())
	}
	if runner.triggers[0] != pipeline.TriggerScheduled {
		t.Errorf("Expected trigger %q, got %q", pipeline.TriggerScheduled, runner.triggers[0])
	}
	last, lastErr := s.LastRun()
	if last == nil {
		t.Error("Expected last run time to be set")
	}
	if lastErr == nil {
		t.Error("Expected the run error to be kept")
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := NewService("@hourly", runner, config.Discard())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()
	<-runner.started

	// still running: this tick must return without starting a run
	s.job.Run()
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("Expected the overlapping tick to be skipped, got %d runs", got)
	}

	close(runner.release)
	<-done
}

func TestStartStop(t *testing.T) {
	s, err := NewService("@daily", &blockingRunner{}, config.Discard())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	s.Start(context.Background())
	if s.NextRun().IsZero() {
		t.Error("Expected a scheduled next run")
	}
	s.Stop()
}
