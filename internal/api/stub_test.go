package api

import (
	"context"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

type stubService struct {
	started   time.Time
	runUnit   string
	lastDays  int
	lastQuery models.FindingQuery
	updated   string
	err       error
}

func (s *stubService) RunDetection(ctx context.Context) (models.RunResult, error) {
	return models.RunResult{StartedAt: s.started, UnitsProcessed: 3, FindingsDetected: 5, FindingsSaved: 4}, s.err
}

func (s *stubService) RunDetectionForUnit(ctx context.Context, unitID string) (models.RunResult, error) {
	s.runUnit = unitID
	return models.RunResult{UnitsProcessed: 1}, s.err
}

func (s *stubService) WeatherAdjustedPerformance(ctx context.Context, unitID string, days int) (models.PerformanceReport, error) {
	s.lastDays = days
	if unitID == "ghost" {
		return models.PerformanceReport{}, utils.NotFoundf("unit %s", unitID)
	}
	if days < 1 || days > 365 {
		return models.PerformanceReport{}, utils.NewValidationError("days", days, "days must be between 1 and 365")
	}
	return models.PerformanceReport{UnitID: unitID, Days: days, CapacityW: 5000, AverageRatio: 92.5}, s.err
}

func (s *stubService) AnomalyDistribution(ctx context.Context, unitID string, days int) (models.DistributionReport, error) {
	s.lastDays = days
	return models.DistributionReport{UnitID: unitID, Days: days, Total: 2}, s.err
}

func (s *stubService) SystemHealth(ctx context.Context, unitID string, days int) (models.HealthReport, error) {
	s.lastDays = days
	return models.HealthReport{UnitID: unitID, Days: days, Score: 74, Rating: "Good", Recommendations: []string{"check inverter"}}, s.err
}

func (s *stubService) ListFindings(ctx context.Context, q models.FindingQuery) ([]models.Finding, error) {
	s.lastQuery = q
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	return []models.Finding{{ID: "f-1", UnitID: q.UnitID, Type: models.FindingNighttimeGeneration, Severity: models.SeverityWarning, Status: models.StatusOpen}}, s.err
}

func (s *stubService) UpdateFindingStatus(ctx context.Context, id string, status models.FindingStatus, by, notes string) error {
	if !status.Valid() {
		return utils.NewValidationError("status", status, "unknown status")
	}
	s.updated = id + ":" + string(status)
	return s.err
}
