package analytics

import (
	"context"
	"slices"
	"strings"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// AnomalyDistribution groups a unit's findings detected within the window by
// type, severity and status and builds a daily trend.
func (e *Engine) AnomalyDistribution(ctx context.Context, unitID string, days int) (models.DistributionReport, error) {
	unit, err := e.resolve(ctx, unitID, days)
	if err != nil {
		return models.DistributionReport{}, err
	}

	now := e.now()
	q := models.FindingQuery{UnitID: unit.ID, From: utils.DaysAgo(now, days), To: now}
	findings, err := e.findings.Find(ctx, q)
	if err != nil {
		return models.DistributionReport{}, utils.NewAppError("analytics", "load findings", err)
	}

	report := models.DistributionReport{
		UnitID:     unit.ID,
		Days:       days,
		Total:      len(findings),
		ByType:     []models.GroupCount{},
		BySeverity: []models.GroupCount{},
		ByStatus:   []models.GroupCount{},
		Trend:      dailyTrend(findings),
	}
	if report.Total == 0 {
		return report, nil
	}

	typeOrder := make([]string, 0, len(models.AllFindingTypes()))
	for _, t := range models.AllFindingTypes() {
		typeOrder = append(typeOrder, string(t))
	}
	sevOrder := make([]string, 0, 3)
	for _, s := range models.AllSeverities() {
		sevOrder = append(sevOrder, string(s))
	}
	statusOrder := make([]string, 0, 4)
	for _, s := range models.AllStatuses() {
		statusOrder = append(statusOrder, string(s))
	}

	groups := []struct {
		field models.GroupField
		order []string
		label func(string) string
		dest  *[]models.GroupCount
	}{
		{models.GroupByType, typeOrder, func(k string) string { return models.FindingType(k).Label() }, &report.ByType},
		{models.GroupBySeverity, sevOrder, titleCase, &report.BySeverity},
		{models.GroupByStatus, statusOrder, titleCase, &report.ByStatus},
	}
	for _, g := range groups {
		counts, err := e.findings.CountByGroup(ctx, q, g.field)
		if err != nil {
			return models.DistributionReport{}, utils.NewAppError("analytics", "count findings by "+string(g.field), err)
		}
		*g.dest = groupCounts(counts, g.order, report.Total, g.label)
	}
	return report, nil
}

// groupCounts orders known keys canonically, then any unexpected keys
// alphabetically. Empty groups are omitted.
func groupCounts(counts map[string]int, order []string, total int, label func(string) string) []models.GroupCount {
	out := make([]models.GroupCount, 0, len(counts))
	seen := make(map[string]bool, len(order))
	emit := func(key string) {
		n := counts[key]
		if n == 0 {
			return
		}
		out = append(out, models.GroupCount{
			Key:        key,
			Label:      label(key),
			Count:      n,
			Percentage: round(float64(n)/float64(total)*100, 2),
		})
	}
	for _, key := range order {
		seen[key] = true
		emit(key)
	}
	var extra []string
	for key := range counts {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	for _, key := range extra {
		emit(key)
	}
	return out
}

func dailyTrend(findings []models.Finding) []models.DailyCount {
	perDay := make(map[string]int)
	for _, f := range findings {
		perDay[utils.DayKey(f.DetectedAt)]++
	}
	trend := make([]models.DailyCount, 0, len(perDay))
	for date, n := range perDay {
		trend = append(trend, models.DailyCount{Date: date, Count: n})
	}
	slices.SortFunc(trend, func(a, b models.DailyCount) int { return strings.Compare(a.Date, b.Date) })
	return trend
}

func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
