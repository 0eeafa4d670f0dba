package analytics

import (
	"context"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

const (
	weightAnomaly     = 0.3
	weightPerformance = 0.4
	weightUptime      = 0.2
	weightResolution  = 0.1

	defaultPerformanceScore = 75.0
)

// Health rating bands.
const (
	HealthExcellent = "Excellent"
	HealthGood      = "Good"
	HealthFair      = "Fair"
	HealthPoor      = "Poor"
)

// SystemHealth combines anomaly load, weather-adjusted performance, uptime
// and resolution speed into a 0-100 score. False positives are ignored.
func (e *Engine) SystemHealth(ctx context.Context, unitID string, days int) (models.HealthReport, error) {
	unit, err := e.resolve(ctx, unitID, days)
	if err != nil {
		return models.HealthReport{}, err
	}

	now := e.now()
	findings, err := e.findingsInWindow(ctx, unit.ID, utils.DaysAgo(now, days), now)
	if err != nil {
		return models.HealthReport{}, err
	}
	perf, err := e.performance(ctx, unit, days)
	if err != nil {
		return models.HealthReport{}, err
	}

	factors := healthFactors(findings, perf, days, uptimeWindowStart(now, days))
	score := int(round(clamp(
		weightAnomaly*factors.AnomalyScore+
			weightPerformance*factors.PerformanceScore+
			weightUptime*factors.UptimePercentage+
			weightResolution*factors.ResolutionScore, 0, 100), 0))

	return models.HealthReport{
		UnitID:          unit.ID,
		Days:            days,
		Score:           score,
		Rating:          HealthRating(score),
		Factors:         factors,
		Recommendations: e.recommender.Recommend(factors),
	}, nil
}

// uptimeWindowStart is midnight UTC of the oldest of the days calendar days
// ending today.
func uptimeWindowStart(now time.Time, days int) time.Time {
	return utils.StartOfDayUTC(utils.DaysAgo(now, days-1))
}

// healthFactors counts a critical day only when the finding's period starts
// inside [windowStart, now]; detection may report periods far older than the window.
func healthFactors(findings []models.Finding, perf models.PerformanceReport, days int, windowStart time.Time) models.HealthFactors {
	var f models.HealthFactors
	criticalDays := make(map[string]struct{})
	resolutionHours := 0.0
	for _, finding := range findings {
		if finding.Status == models.StatusFalsePositive {
			continue
		}
		switch finding.Severity {
		case models.SeverityCritical:
			f.CriticalCount++
			if !finding.PeriodStart.Before(windowStart) {
				criticalDays[utils.DayKey(finding.PeriodStart)] = struct{}{}
			}
		case models.SeverityWarning:
			f.WarningCount++
		}
		if finding.Status == models.StatusResolved && finding.Resolution != nil {
			f.ResolvedCount++
			resolutionHours += utils.HoursBetween(finding.DetectedAt, finding.Resolution.ResolvedAt)
		}
	}

	f.AnomalyScore = clamp(100-10*float64(f.CriticalCount)-5*float64(f.WarningCount), 0, 100)

	if len(perf.Daily) == 0 {
		f.PerformanceScore = defaultPerformanceScore
		f.PerformanceDefault = true
	} else {
		f.PerformanceScore = clamp(perf.AverageRatio, 0, 100)
	}

	f.DaysWithCritical = min(len(criticalDays), days)
	f.UptimePercentage = round(float64(days-f.DaysWithCritical)/float64(days)*100, 2)

	f.ResolutionScore = 100
	if f.ResolvedCount > 0 {
		f.MeanResolutionHours = round(resolutionHours/float64(f.ResolvedCount), 2)
		f.ResolutionScore = round(clamp(100-(f.MeanResolutionHours/24)*10, 0, 100), 2)
	}
	return f
}

// HealthRating maps a health score to its band.
func HealthRating(score int) string {
	switch {
	case score >= 85:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 50:
		return HealthFair
	default:
		return HealthPoor
	}
}
