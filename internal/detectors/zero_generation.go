package detectors

import (
	"fmt"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// ZeroGenerationDetector flags complete silence during peak hours. It does
// not consult weather data.
type ZeroGenerationDetector struct {
	th Thresholds
}

// NewZeroGenerationDetector constructs the peak-hour zero output check.
func NewZeroGenerationDetector(th Thresholds) *ZeroGenerationDetector {
	return &ZeroGenerationDetector{th: th}
}

func (d *ZeroGenerationDetector) Name() string { return "zero_generation_clear_sky" }

// Detect emits one critical finding per peak-hour reading of exactly zero.
func (d *ZeroGenerationDetector) Detect(_ models.Unit, w *Window) []models.Finding {
	var out []models.Finding
	for r := range w.Descending() {
		if !d.th.IsPeak(r.HourUTC()) || r.EnergyWh != 0 {
			continue
		}
		out = append(out, pointFinding(w, r, models.FindingZeroGenerationClear, models.SeverityCritical,
			fmt.Sprintf("No generation recorded at %s during peak hours", hhmm(r.Timestamp)),
			models.FindingMetadata{
				ExpectedValue:    d.th.PeakMinimumWh,
				ActualValue:      0,
				DeviationPercent: 100,
				Threshold:        fmt.Sprintf("peak hours %02d:00-%02d:59 UTC, minimum %.0f Wh", d.th.PeakStartHour, d.th.PeakEndHour, d.th.PeakMinimumWh),
			}))
	}
	return out
}
