package detectors

import (
	"fmt"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// NighttimeDetector flags material output outside daylight hours.
type NighttimeDetector struct {
	th Thresholds
}

// NewNighttimeDetector constructs the nighttime generation check.
func NewNighttimeDetector(th Thresholds) *NighttimeDetector {
	return &NighttimeDetector{th: th}
}

func (d *NighttimeDetector) Name() string { return "nighttime_generation" }

// Detect emits one critical finding per night reading above NightMaxWh.
func (d *NighttimeDetector) Detect(_ models.Unit, w *Window) []models.Finding {
	var out []models.Finding
	for r := range w.Descending() {
		if !d.th.IsNight(r.HourUTC()) || r.EnergyWh <= d.th.NightMaxWh {
			continue
		}
		out = append(out, pointFinding(w, r, models.FindingNighttimeGeneration, models.SeverityCritical,
			fmt.Sprintf("Unit reported %.1f Wh at %s, outside daylight hours", r.EnergyWh, hhmm(r.Timestamp)),
			models.FindingMetadata{
				ExpectedValue:    0,
				ActualValue:      r.EnergyWh,
				DeviationPercent: 100,
				Threshold:        fmt.Sprintf("night hours (>= %02d:00 or < %02d:00 UTC), max %.0f Wh", d.th.NightStartHour, d.th.NightEndHour, d.th.NightMaxWh),
			}))
	}
	return out
}
