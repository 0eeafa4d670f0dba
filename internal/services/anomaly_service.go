package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helioscope/solar-anomaly/internal/cache"
	"github.com/helioscope/solar-anomaly/internal/metrics"
	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// Detection runs the detectors over stored telemetry.
type Detection interface {
	RunForAllActiveUnits(ctx context.Context) (models.RunResult, error)
	RunForUnit(ctx context.Context, unitID string) (models.RunResult, error)
}

// Analytics computes per-unit reports.
type Analytics interface {
	WeatherAdjustedPerformance(ctx context.Context, unitID string, days int) (models.PerformanceReport, error)
	AnomalyDistribution(ctx context.Context, unitID string, days int) (models.DistributionReport, error)
	SystemHealth(ctx context.Context, unitID string, days int) (models.HealthReport, error)
}

// FindingRepo reads and reviews stored findings.
type FindingRepo interface {
	Find(ctx context.Context, q models.FindingQuery) ([]models.Finding, error)
	UpdateStatus(ctx context.Context, id string, status models.FindingStatus, resolution *models.Resolution) error
}

// ReadingCounter reports the size of the telemetry store.
type ReadingCounter interface {
	CountReadings(ctx context.Context) (int64, error)
}

// Options carries the optional collaborators of AnomalyService.
type Options struct {
	Cache        cache.Provider
	CacheTTL     time.Duration
	FillWait     time.Duration
	Findings     FindingRepo
	Readings     ReadingCounter
	Now          func() time.Time
	LatencyBatch int
}

// AnomalyService is the single facade used by the gRPC, HTTP and scheduler
// entry points.
type AnomalyService struct {
	logger    *slog.Logger
	detection Detection
	analytics Analytics
	findings  FindingRepo
	readings  ReadingCounter
	cache     cache.Provider
	cacheTTL  time.Duration
	fillWait  time.Duration
	fillPoll  time.Duration
	now       func() time.Time
	latencies *utils.LatencyTracker
	logEvery  int
}

// generationKey holds the token every report key embeds. Rotating it in the
// shared cache invalidates reports on all replicas at once.
const generationKey = "solar:analytics:generation"

// NewAnomalyService constructs the service facade.
func NewAnomalyService(logger *slog.Logger, detection Detection, analytics Analytics, opts Options) *AnomalyService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.FillWait <= 0 {
		opts.FillWait = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LatencyBatch <= 0 {
		opts.LatencyBatch = 20
	}
	return &AnomalyService{
		logger:    logger.With("component", "anomaly_service"),
		detection: detection,
		analytics: analytics,
		findings:  opts.Findings,
		readings:  opts.Readings,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		fillWait:  opts.FillWait,
		fillPoll:  50 * time.Millisecond,
		now:       opts.Now,
		latencies: utils.NewLatencyTracker(1024),
		logEvery:  opts.LatencyBatch,
	}
}

// ErrNotConfigured is returned when an operation's collaborator is missing.
var ErrNotConfigured = errors.New("service dependency not configured")

// RunDetection scans every active unit once.
func (s *AnomalyService) RunDetection(ctx context.Context) (models.RunResult, error) {
	if s.detection == nil {
		return models.RunResult{}, fmt.Errorf("run detection: %w", ErrNotConfigured)
	}
	res, err := s.detection.RunForAllActiveUnits(ctx)
	s.afterRun(ctx, res)
	return res, err
}

// RunDetectionForUnit scans a single unit regardless of its status.
func (s *AnomalyService) RunDetectionForUnit(ctx context.Context, unitID string) (models.RunResult, error) {
	if unitID == "" {
		return models.RunResult{}, utils.NewValidationError("unitId", unitID, "unit id is required")
	}
	if s.detection == nil {
		return models.RunResult{}, fmt.Errorf("run detection: %w", ErrNotConfigured)
	}
	res, err := s.detection.RunForUnit(ctx, unitID)
	s.afterRun(ctx, res)
	return res, err
}

func (s *AnomalyService) afterRun(ctx context.Context, res models.RunResult) {
	if res.FindingsSaved > 0 {
		s.invalidate(ctx)
	}
	if res.Duration > 0 {
		s.latencies.Observe(res.Duration)
		if count := s.latencies.Count(); count >= s.logEvery && count%s.logEvery == 0 {
			s.logger.Info("detection run latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
		}
	}
	if s.readings == nil {
		return
	}
	total, err := s.readings.CountReadings(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Warn("count readings failed", slog.Any("error", err))
		return
	}
	s.logger.Info("telemetry store size", slog.Int64("readings", total))
}

// WeatherAdjustedPerformance returns the daily performance report for a unit.
func (s *AnomalyService) WeatherAdjustedPerformance(ctx context.Context, unitID string, days int) (models.PerformanceReport, error) {
	return cached(ctx, s, "performance", unitID, days, s.analytics.WeatherAdjustedPerformance)
}

// AnomalyDistribution returns finding counts by type, severity and status.
func (s *AnomalyService) AnomalyDistribution(ctx context.Context, unitID string, days int) (models.DistributionReport, error) {
	return cached(ctx, s, "distribution", unitID, days, s.analytics.AnomalyDistribution)
}

// SystemHealth returns the composite health score for a unit.
func (s *AnomalyService) SystemHealth(ctx context.Context, unitID string, days int) (models.HealthReport, error) {
	return cached(ctx, s, "health", unitID, days, s.analytics.SystemHealth)
}

// ListFindings returns findings matching q.
func (s *AnomalyService) ListFindings(ctx context.Context, q models.FindingQuery) ([]models.Finding, error) {
	if s.findings == nil {
		return nil, fmt.Errorf("list findings: %w", ErrNotConfigured)
	}
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	return s.findings.Find(ctx, q)
}

// UpdateFindingStatus records a review decision. Resolved and false-positive
// transitions are stamped with a resolution.
func (s *AnomalyService) UpdateFindingStatus(ctx context.Context, id string, status models.FindingStatus, by, notes string) error {
	if s.findings == nil {
		return fmt.Errorf("update finding: %w", ErrNotConfigured)
	}
	if id == "" {
		return utils.NewValidationError("id", id, "finding id is required")
	}
	if !status.Valid() {
		return utils.NewValidationError("status", status, "unknown status")
	}
	var res *models.Resolution
	if !status.Active() {
		res = &models.Resolution{ResolvedBy: by, ResolvedAt: s.now().UTC(), Notes: notes}
	}
	if err := s.findings.UpdateStatus(ctx, id, status, res); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// LatencyP95 returns the current p95 detection run latency.
func (s *AnomalyService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *AnomalyService) invalidate(ctx context.Context) {
	if _, err := cache.Rotate(context.WithoutCancel(ctx), s.cache, generationKey); err != nil {
		s.logger.Warn("analytics cache invalidation failed", slog.Any("error", err))
	}
}

// cacheKey reports false when the generation cannot be read; callers then
// bypass the cache rather than risk serving a report from an old generation.
func (s *AnomalyService) cacheKey(ctx context.Context, op, unitID string, days int) (string, bool) {
	gen, err := cache.Token(ctx, s.cache, generationKey, "0")
	if err != nil {
		s.logger.Warn("analytics cache generation unavailable", slog.Any("error", err))
		return "", false
	}
	return fmt.Sprintf("solar:analytics:%s:%s:%d:%s:%s", op, unitID, days, utils.DayKey(s.now()), gen), true
}

func lookup[T any](ctx context.Context, s *AnomalyService, key string) (T, bool) {
	var out T
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("analytics cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("discarding undecodable cache entry", slog.String("key", key))
		return out, false
	}
	return out, true
}

// awaitFill polls for a report another caller holds the fill lock for.
func awaitFill[T any](ctx context.Context, s *AnomalyService, key string) (T, bool) {
	deadline := time.NewTimer(s.fillWait)
	defer deadline.Stop()
	tick := time.NewTicker(s.fillPoll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-deadline.C:
			var zero T
			return zero, false
		case <-tick.C:
			if out, ok := lookup[T](ctx, s, key); ok {
				return out, true
			}
		}
	}
}

func cached[T any](ctx context.Context, s *AnomalyService, op, unitID string, days int, compute func(context.Context, string, int) (T, error)) (T, error) {
	var zero T
	if s.analytics == nil {
		return zero, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	key, ok := s.cacheKey(ctx, op, unitID, days)
	if !ok {
		return computeReport(ctx, s, op, unitID, days, compute)
	}
	if out, hit := lookup[T](ctx, s, key); hit {
		metrics.IncAnalyticsCache(true)
		return out, nil
	}
	metrics.IncAnalyticsCache(false)

	release, owner, err := cache.Acquire(ctx, s.cache, key+":fill", s.fillWait)
	if err != nil {
		s.logger.Warn("analytics fill lock failed", slog.String("key", key), slog.Any("error", err))
	}
	if err == nil && !owner {
		if out, hit := awaitFill[T](ctx, s, key); hit {
			return out, nil
		}
	}
	defer release(context.WithoutCancel(ctx))

	out, err := computeReport(ctx, s, op, unitID, days, compute)
	if err != nil {
		return zero, err
	}
	if payload, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return out, nil
}

func computeReport[T any](ctx context.Context, s *AnomalyService, op, unitID string, days int, compute func(context.Context, string, int) (T, error)) (T, error) {
	out, err := compute(ctx, unitID, days)
	if err != nil {
		metrics.ObserveAnalytics(op, metrics.OutcomeError)
		if !errors.Is(err, utils.ErrInvalidArgument) && !errors.Is(err, utils.ErrNotFound) {
			s.logger.Error("analytics computation failed", slog.String("operation", op), slog.String("unit_id", unitID), slog.Any("error", err))
		}
		return out, err
	}
	metrics.ObserveAnalytics(op, metrics.OutcomeSuccess)
	return out, nil
}
