package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helioscope/solar-anomaly/internal/detectors"
	"github.com/helioscope/solar-anomaly/internal/metrics"
	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// UnitSource is the unit store as seen by the orchestrator.
type UnitSource interface {
	FindActiveUnits(ctx context.Context) ([]models.Unit, error)
	FindUnit(ctx context.Context, id string) (models.Unit, error)
}

// Orchestrator runs every detector over every active unit.
type Orchestrator struct {
	logger    *slog.Logger
	units     UnitSource
	loader    *detectors.Loader
	detectors []detectors.Detector
	recorder  *Recorder
	workers   int
	now       func() time.Time
}

// NewOrchestrator constructs an Orchestrator scanning up to workers units at once.
func NewOrchestrator(logger *slog.Logger, units UnitSource, loader *detectors.Loader, set []detectors.Detector, recorder *Recorder, workers int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	if set == nil {
		set = detectors.Default(detectors.DefaultThresholds())
	}
	return &Orchestrator{
		logger:    logger,
		units:     units,
		loader:    loader,
		detectors: set,
		recorder:  recorder,
		workers:   workers,
		now:       time.Now,
	}
}

type unitScan struct {
	detected int
	saved    int
}

// RunForAllActiveUnits scans each active unit and aggregates the counts. A
// failing unit is logged and recorded in the result without affecting the
// others. When ctx is cancelled no further units are started, units already
// scanning finish, and the partial result is returned with ctx's error.
func (o *Orchestrator) RunForAllActiveUnits(ctx context.Context) (models.RunResult, error) {
	start := o.now()
	result := models.RunResult{StartedAt: start.UTC()}

	units, err := o.units.FindActiveUnits(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		metrics.ObserveDetectionRun(result.Duration, metrics.OutcomeError)
		o.logger.Error("list active units failed", slog.Any("error", err))
		return result, utils.NewAppError("detection run", "list active units", err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.workers)

	scheduled := 0
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				result.UnitsSkipped++
				mu.Unlock()
				return nil
			}
			scan, err := o.scanUnit(context.WithoutCancel(ctx), unit)

			mu.Lock()
			defer mu.Unlock()
			result.FindingsDetected += scan.detected
			result.FindingsSaved += scan.saved
			if err != nil {
				result.UnitsFailed++
				result.Failures = append(result.Failures, models.UnitFailure{UnitID: unit.ID, Error: err.Error()})
				metrics.ObserveUnitScan(metrics.OutcomeError)
				o.logger.Error("unit scan failed", slog.String("unit_id", unit.ID), slog.Any("error", err))
				return nil
			}
			result.UnitsProcessed++
			metrics.ObserveUnitScan(metrics.OutcomeSuccess)
			return nil
		})
	}
	_ = g.Wait()
	result.UnitsSkipped += len(units) - scheduled
	result.Duration = time.Since(start)

	outcome := metrics.OutcomeSuccess
	if result.UnitsFailed > 0 || result.UnitsSkipped > 0 {
		outcome = metrics.OutcomePartial
	}
	metrics.ObserveDetectionRun(result.Duration, outcome)
	o.logger.Info("detection run completed",
		slog.Int("units_active", len(units)),
		slog.Int("units_processed", result.UnitsProcessed),
		slog.Int("units_failed", result.UnitsFailed),
		slog.Int("units_skipped", result.UnitsSkipped),
		slog.Int("findings_detected", result.FindingsDetected),
		slog.Int("findings_saved", result.FindingsSaved),
		slog.Duration("duration", result.Duration),
	)

	if err := ctx.Err(); err != nil && result.UnitsSkipped > 0 {
		return result, fmt.Errorf("detection run interrupted after %d of %d units: %w", len(units)-result.UnitsSkipped, len(units), err)
	}
	return result, nil
}

// RunForUnit scans a single unit regardless of its status.
func (o *Orchestrator) RunForUnit(ctx context.Context, unitID string) (models.RunResult, error) {
	start := o.now()
	result := models.RunResult{StartedAt: start.UTC()}

	unit, err := o.units.FindUnit(ctx, unitID)
	if err != nil {
		return result, err
	}
	scan, err := o.scanUnit(ctx, unit)
	result.FindingsDetected = scan.detected
	result.FindingsSaved = scan.saved
	result.Duration = time.Since(start)
	if err != nil {
		result.UnitsFailed = 1
		result.Failures = []models.UnitFailure{{UnitID: unit.ID, Error: err.Error()}}
		metrics.ObserveUnitScan(metrics.OutcomeError)
		return result, err
	}
	result.UnitsProcessed = 1
	metrics.ObserveUnitScan(metrics.OutcomeSuccess)
	return result, nil
}

func (o *Orchestrator) scanUnit(ctx context.Context, unit models.Unit) (scan unitScan, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("unit scan panicked", slog.String("unit_id", unit.ID), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scan unit %s: panic: %v", unit.ID, rec)
		}
	}()

	w, err := o.loader.Load(ctx, unit.ID)
	if err != nil {
		return scan, err
	}

	findings := detectors.RunAll(unit, w, o.detectors)
	scan.detected = len(findings)
	countByType := make(map[models.FindingType]int)
	for _, f := range findings {
		countByType[f.Type]++
	}
	for typ, n := range countByType {
		metrics.AddFindingsDetected(string(typ), n)
	}

	scan.saved, err = o.recorder.Record(ctx, findings)
	o.logger.Debug("unit scanned",
		slog.String("unit_id", unit.ID),
		slog.Int("readings", w.Len()),
		slog.Int("findings_detected", scan.detected),
		slog.Int("findings_saved", scan.saved),
	)
	return scan, err
}
