package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/services"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// Service is the facade exposed over gRPC and HTTP.
type Service interface {
	RunDetection(ctx context.Context) (models.RunResult, error)
	RunDetectionForUnit(ctx context.Context, unitID string) (models.RunResult, error)
	WeatherAdjustedPerformance(ctx context.Context, unitID string, days int) (models.PerformanceReport, error)
	AnomalyDistribution(ctx context.Context, unitID string, days int) (models.DistributionReport, error)
	SystemHealth(ctx context.Context, unitID string, days int) (models.HealthReport, error)
	ListFindings(ctx context.Context, q models.FindingQuery) ([]models.Finding, error)
	UpdateFindingStatus(ctx context.Context, id string, status models.FindingStatus, by, notes string) error
}

var _ Service = (*services.AnomalyService)(nil)

// DefaultWindowDays applies when a request omits the window length.
const DefaultWindowDays = 30

// statusCode maps domain errors onto gRPC codes.
func statusCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, utils.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, utils.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, services.ErrNotConfigured):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code := statusCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
