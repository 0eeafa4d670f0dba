// Package scheduler triggers detection runs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// Runner executes one detection pass over every active unit.
type Runner interface {
	RunDetection(ctx context.Context) (models.RunResult, error)
}

// Config controls the tick loop.
type Config struct {
	Interval   time.Duration
	RunOnStart bool
	RunTimeout time.Duration
}

// Scheduler invokes Runner every Interval. A tick that fires while the
// previous run is still in progress is skipped.
type Scheduler struct {
	logger *slog.Logger
	runner Runner
	cfg    Config

	busy    atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	skipped atomic.Int64
}

// New builds a Scheduler. Interval must be positive.
func New(logger *slog.Logger, runner Runner, cfg Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger.With("component", "scheduler"), runner: runner, cfg: cfg}, nil
}

// Start launches the tick loop. It returns immediately; calling Start twice
// without Stop is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started", slog.Duration("interval", s.cfg.Interval), slog.Bool("run_on_start", s.cfg.RunOnStart))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Skipped reports how many ticks were dropped because a run was in progress.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func() {
		if !s.busy.CompareAndSwap(false, true) {
			s.skipped.Add(1)
			s.logger.Warn("previous detection run still in progress; skipping tick")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.busy.Store(false)
			s.runOnce(ctx)
		}()
	}

	if s.cfg.RunOnStart {
		trigger()
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trigger()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	res, err := s.runner.RunDetection(ctx)
	if err != nil {
		s.logger.Error("scheduled detection run failed", slog.Any("error", err),
			slog.Int("units_processed", res.UnitsProcessed), slog.Int("units_skipped", res.UnitsSkipped))
		return
	}
	s.logger.Debug("scheduled detection run finished", slog.Int("findings_saved", res.FindingsSaved))
}
