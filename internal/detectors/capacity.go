package detectors

import (
	"fmt"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// CapacityDetector flags readings above what the nameplate capacity can
// physically produce over the interval.
type CapacityDetector struct{}

// NewCapacityDetector constructs the capacity exceeded check.
func NewCapacityDetector() *CapacityDetector {
	return &CapacityDetector{}
}

func (d *CapacityDetector) Name() string { return "capacity_exceeded" }

// Detect emits one critical finding per reading above capacity × interval.
// Units without a positive capacity are skipped.
func (d *CapacityDetector) Detect(unit models.Unit, w *Window) []models.Finding {
	if unit.CapacityW <= 0 {
		return nil
	}
	var out []models.Finding
	for r := range w.Descending() {
		interval := r.Interval()
		maxPossible := unit.CapacityW * interval
		if r.EnergyWh <= maxPossible {
			continue
		}
		out = append(out, pointFinding(w, r, models.FindingExceedingThreshold, models.SeverityCritical,
			fmt.Sprintf("Reported %.0f Wh exceeds the physical maximum of %.0f Wh", r.EnergyWh, maxPossible),
			models.FindingMetadata{
				ExpectedValue:    maxPossible,
				ActualValue:      r.EnergyWh,
				DeviationPercent: roundPercent((r.EnergyWh - maxPossible) / maxPossible),
				Threshold:        fmt.Sprintf("capacity %.0f W x interval %gh = %.0f Wh", unit.CapacityW, interval, maxPossible),
			}))
	}
	return out
}
