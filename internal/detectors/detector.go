// Package detectors implements the rule-based telemetry checks run against a
// unit's reading window. Detectors are stateless and never touch a store.
package detectors

import (
	"math"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// Detector inspects one unit's window and returns candidate findings.
type Detector interface {
	Name() string
	Detect(unit models.Unit, w *Window) []models.Finding
}

// Default returns the full rule set configured with th.
func Default(th Thresholds) []Detector {
	return []Detector{
		NewNighttimeDetector(th),
		NewZeroGenerationDetector(th),
		NewCapacityDetector(),
		NewWeatherMismatchDetector(th),
		NewFrozenDetector(th),
	}
}

// RunAll applies every detector to w and concatenates their findings.
func RunAll(unit models.Unit, w *Window, set []Detector) []models.Finding {
	var out []models.Finding
	for _, d := range set {
		out = append(out, d.Detect(unit, w)...)
	}
	return out
}

func pointFinding(w *Window, r models.Reading, typ models.FindingType, sev models.Severity, desc string, meta models.FindingMetadata) models.Finding {
	return models.Finding{
		UnitID:      r.UnitID,
		Type:        typ,
		Severity:    sev,
		DetectedAt:  w.LoadedAt,
		PeriodStart: r.Timestamp.UTC(),
		ReadingIDs:  []string{r.ID},
		Description: desc,
		Metadata:    meta,
		Status:      models.StatusOpen,
	}
}

func roundPercent(v float64) float64 {
	return math.Round(v * 100)
}

func hhmm(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
