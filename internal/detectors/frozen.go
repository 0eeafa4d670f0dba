package detectors

import (
	"fmt"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// FrozenDetector flags runs of identical energy values that suggest a stuck
// sensor or a broken ingestion link.
type FrozenDetector struct {
	th Thresholds
}

// NewFrozenDetector constructs the frozen generation check.
func NewFrozenDetector(th Thresholds) *FrozenDetector {
	return &FrozenDetector{th: th}
}

func (d *FrozenDetector) Name() string { return "frozen_generation" }

// Detect folds the ascending reading sequence into streaks and emits one
// warning per qualifying streak.
func (d *FrozenDetector) Detect(_ models.Unit, w *Window) []models.Finding {
	state := frozenFold{}
	for r := range w.Ascending() {
		state = state.step(r)
	}
	var out []models.Finding
	for _, streak := range state.finish() {
		if len(streak) < d.th.FrozenMinStreak || d.nightZero(streak) {
			continue
		}
		out = append(out, d.finding(w, streak))
	}
	return out
}

// frozenFold is the scan state: the open streak and every streak already closed.
// Each step returns a new state; the caller keeps only the latest.
type frozenFold struct {
	current []models.Reading
	closed  [][]models.Reading
}

func (s frozenFold) step(r models.Reading) frozenFold {
	if n := len(s.current); n > 0 && s.current[n-1].EnergyWh != r.EnergyWh {
		s.closed = append(s.closed, s.current)
		s.current = nil
	}
	s.current = append(s.current, r)
	return s
}

func (s frozenFold) finish() [][]models.Reading {
	if len(s.current) == 0 {
		return s.closed
	}
	return append(s.closed, s.current)
}

func (d *FrozenDetector) nightZero(streak []models.Reading) bool {
	for _, r := range streak {
		if r.EnergyWh != 0 || !d.th.IsNight(r.HourUTC()) {
			return false
		}
	}
	return true
}

func (d *FrozenDetector) finding(w *Window, streak []models.Reading) models.Finding {
	first, last := streak[0], streak[len(streak)-1]
	ids := make([]string, 0, len(streak))
	for _, r := range streak {
		ids = append(ids, r.ID)
	}
	end := last.Timestamp.UTC()

	changed := weatherChanged(streak)
	deviation := 50.0
	desc := fmt.Sprintf("Energy stuck at %.1f Wh for %d consecutive readings (%s to %s)",
		first.EnergyWh, len(streak), hhmm(first.Timestamp), hhmm(last.Timestamp))
	if changed {
		deviation = 100
		desc += "; weather changed during the streak, so the sensor is likely frozen"
	}

	return models.Finding{
		UnitID:      w.UnitID,
		Type:        models.FindingFrozenGeneration,
		Severity:    models.SeverityWarning,
		DetectedAt:  w.LoadedAt,
		PeriodStart: first.Timestamp.UTC(),
		PeriodEnd:   &end,
		ReadingIDs:  ids,
		Description: desc,
		Metadata: models.FindingMetadata{
			ExpectedValue:    0,
			ActualValue:      first.EnergyWh,
			DeviationPercent: deviation,
			Threshold:        fmt.Sprintf("%d or more identical consecutive readings", d.th.FrozenMinStreak),
			Frozen:           &models.FrozenDetail{StreakLength: len(streak), WeatherChanged: changed},
		},
		Status: models.StatusOpen,
	}
}

// weatherChanged reports whether distinct conditions or cloud-cover values
// were recorded across the streak. Readings without a snapshot are ignored.
func weatherChanged(streak []models.Reading) bool {
	conditions := map[models.WeatherCondition]struct{}{}
	clouds := map[float64]struct{}{}
	for _, r := range streak {
		if r.Weather == nil {
			continue
		}
		if r.Weather.Condition != "" {
			conditions[r.Weather.Condition] = struct{}{}
		}
		if r.Weather.CloudCover != nil {
			clouds[*r.Weather.CloudCover] = struct{}{}
		}
	}
	return len(conditions) > 1 || len(clouds) > 1
}
