package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

type countingRunner struct {
	calls   atomic.Int64
	block   chan struct{}
	started chan struct{}
}

func (r *countingRunner) RunDetection(ctx context.Context) (models.RunResult, error) {
	r.calls.Add(1)
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return models.RunResult{}, ctx.Err()
		}
	}
	return models.RunResult{}, nil
}

func TestSchedulerRunsOnStart(t *testing.T) {
	runner := &countingRunner{started: make(chan struct{}, 1)}
	s, err := New(utils.DiscardLogger(), runner, Config{Interval: time.Hour, RunOnStart: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("run on start did not fire")
	}
	s.Stop()
	if runner.calls.Load() != 1 {
		t.Fatalf("expected exactly one run, got %d", runner.calls.Load())
	}
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(utils.DiscardLogger(), runner, Config{Interval: 5 * time.Millisecond, RunOnStart: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-runner.started

	deadline := time.Now().Add(2 * time.Second)
	for s.Skipped() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Skipped() < 3 {
		t.Fatalf("expected ticks to be skipped while busy, got %d", s.Skipped())
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("overlapping run started: %d calls", runner.calls.Load())
	}
	close(runner.block)
	s.Stop()
}

func TestSchedulerStopCancelsInflightRun(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := New(utils.DiscardLogger(), runner, Config{Interval: time.Hour, RunOnStart: true})
	_ = s.Start(context.Background())
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return")
	}
}

func TestSchedulerRejectsDoubleStartAndBadInterval(t *testing.T) {
	if _, err := New(nil, &countingRunner{}, Config{}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	s, _ := New(nil, &countingRunner{}, Config{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error on second start")
	}
}
