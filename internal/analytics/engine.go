// Package analytics derives weather-adjusted performance, anomaly
// distribution and system health from stored readings and findings.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/solar"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// UnitSource resolves units.
type UnitSource interface {
	FindUnit(ctx context.Context, id string) (models.Unit, error)
}

// ReadingSource returns a unit's readings at or after since, oldest-first.
type ReadingSource interface {
	FindReadings(ctx context.Context, unitID string, since time.Time) ([]models.Reading, error)
}

// FindingReader is the read side of the finding store.
type FindingReader interface {
	Find(ctx context.Context, q models.FindingQuery) ([]models.Finding, error)
	CountByGroup(ctx context.Context, q models.FindingQuery, field models.GroupField) (map[string]int, error)
}

// Settings holds the analytics constants.
type Settings struct {
	PeakSunHours    float64          `yaml:"peakSunHours"`
	MaxWindowDays   int              `yaml:"maxWindowDays"`
	WeatherDefaults solar.Conditions `yaml:"weatherDefaults"`
}

// DefaultSettings returns 5.5 peak-sun-hours, a one-year window limit and
// neutral weather defaults.
func DefaultSettings() Settings {
	return Settings{
		PeakSunHours:    5.5,
		MaxWindowDays:   365,
		WeatherDefaults: solar.NeutralConditions,
	}
}

// Engine computes analytics on demand. It holds no mutable state.
type Engine struct {
	logger      *slog.Logger
	units       UnitSource
	readings    ReadingSource
	findings    FindingReader
	settings    Settings
	recommender *Recommender
	now         func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecommender replaces the default recommendation rules.
func WithRecommender(r *Recommender) Option {
	return func(e *Engine) {
		if r != nil {
			e.recommender = r
		}
	}
}

// New constructs an Engine.
func New(logger *slog.Logger, units UnitSource, readings ReadingSource, findings FindingReader, settings Settings, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.PeakSunHours <= 0 {
		settings.PeakSunHours = DefaultSettings().PeakSunHours
	}
	if settings.MaxWindowDays <= 0 {
		settings.MaxWindowDays = DefaultSettings().MaxWindowDays
	}
	e := &Engine{
		logger:      logger,
		units:       units,
		readings:    readings,
		findings:    findings,
		settings:    settings,
		recommender: DefaultRecommender(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) validate(unitID string, days int) error {
	if strings.TrimSpace(unitID) == "" {
		return utils.NewValidationError("unitId", unitID, "must not be empty")
	}
	if days < 1 || days > e.settings.MaxWindowDays {
		return utils.NewValidationError("days", days, fmt.Sprintf("must be between 1 and %d", e.settings.MaxWindowDays))
	}
	return nil
}

// resolve validates the request, then loads the unit.
func (e *Engine) resolve(ctx context.Context, unitID string, days int) (models.Unit, error) {
	if err := e.validate(unitID, days); err != nil {
		return models.Unit{}, err
	}
	unit, err := e.units.FindUnit(ctx, unitID)
	if err != nil {
		return models.Unit{}, fmt.Errorf("find unit %s: %w", unitID, err)
	}
	return unit, nil
}

func (e *Engine) findingsInWindow(ctx context.Context, unitID string, since, until time.Time) ([]models.Finding, error) {
	findings, err := e.findings.Find(ctx, models.FindingQuery{UnitID: unitID, From: since, To: until})
	if err != nil {
		return nil, utils.NewAppError("analytics", "load findings", err)
	}
	return findings, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
