package detectors

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// ReadingSource is the reading store as seen by the loader.
type ReadingSource interface {
	FindReadings(ctx context.Context, unitID string, since time.Time) ([]models.Reading, error)
}

// Window is one unit's readings inside the lookback window, held oldest-first.
// Both sequences are restartable and never mutate the underlying readings.
type Window struct {
	UnitID    string
	Since     time.Time
	LoadedAt  time.Time
	Truncated bool

	readings []models.Reading
}

// NewWindow builds a window from readings already sorted oldest-first.
func NewWindow(unitID string, since, loadedAt time.Time, ascending []models.Reading) *Window {
	return &Window{UnitID: unitID, Since: since, LoadedAt: loadedAt, readings: ascending}
}

// Len returns the number of readings in the window.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.readings)
}

// Ascending yields readings oldest-first.
func (w *Window) Ascending() iter.Seq[models.Reading] {
	return func(yield func(models.Reading) bool) {
		if w == nil {
			return
		}
		for _, r := range w.readings {
			if !yield(r) {
				return
			}
		}
	}
}

// Descending yields readings newest-first.
func (w *Window) Descending() iter.Seq[models.Reading] {
	return func(yield func(models.Reading) bool) {
		if w == nil {
			return
		}
		for i := len(w.readings) - 1; i >= 0; i-- {
			if !yield(w.readings[i]) {
				return
			}
		}
	}
}

// Loader fetches a unit's reading window.
type Loader struct {
	logger       *slog.Logger
	source       ReadingSource
	lookbackDays int
	maxReadings  int
	now          func() time.Time
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithMaxReadings keeps only the newest n readings of a unit per load. The
// ceiling is applied once per unit, so every detector in the run scans the
// same window. Zero disables it.
func WithMaxReadings(n int) LoaderOption {
	return func(l *Loader) { l.maxReadings = n }
}

// WithClock overrides the loader's time source.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// NewLoader constructs a Loader reading lookbackDays of history.
func NewLoader(logger *slog.Logger, source ReadingSource, lookbackDays int, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	l := &Loader{
		logger:       logger,
		source:       source,
		lookbackDays: lookbackDays,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the unit's readings with timestamp >= now - lookback.
func (l *Loader) Load(ctx context.Context, unitID string) (*Window, error) {
	if l.source == nil {
		return nil, fmt.Errorf("reading source not configured")
	}
	now := l.now()
	since := utils.DaysAgo(now, l.lookbackDays)

	raw, err := l.source.FindReadings(ctx, unitID, since)
	if err != nil {
		return nil, utils.NewAppError("load readings", "unit "+unitID, err)
	}

	readings := make([]models.Reading, 0, len(raw))
	for _, r := range raw {
		if r.Timestamp.Before(since) {
			continue
		}
		if err := r.Validate(); err != nil {
			l.logger.Warn("skipping invalid reading", slog.String("unit_id", unitID), slog.Any("error", err))
			continue
		}
		readings = append(readings, r)
	}
	slices.SortStableFunc(readings, func(a, b models.Reading) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})

	w := NewWindow(unitID, since, now, readings)
	if l.maxReadings > 0 && len(readings) > l.maxReadings {
		w.readings = readings[len(readings)-l.maxReadings:]
		w.Truncated = true
		l.logger.Warn("reading window truncated to ceiling",
			slog.String("unit_id", unitID),
			slog.Int("available", len(readings)),
			slog.Int("kept", l.maxReadings),
		)
	}
	return w, nil
}
