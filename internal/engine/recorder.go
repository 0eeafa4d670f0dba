package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helioscope/solar-anomaly/internal/metrics"
	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// FindingStore is the finding persistence used by the recorder.
type FindingStore interface {
	FindOpenOrAcknowledged(ctx context.Context, unitID string, typ models.FindingType, periodStart time.Time) (models.Finding, bool, error)
	Insert(ctx context.Context, finding models.Finding) (models.Finding, error)
}

// Publisher announces newly saved findings to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, finding models.Finding) error
}

// Recorder is the only write path from detection into the finding store. It
// drops findings that duplicate an open or acknowledged finding.
type Recorder struct {
	logger    *slog.Logger
	store     FindingStore
	publisher Publisher
	newID     func() string
}

// NewRecorder constructs a Recorder. publisher may be nil.
func NewRecorder(logger *slog.Logger, store FindingStore, publisher Publisher) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger:    logger,
		store:     store,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// Record persists every finding that has no active duplicate and returns how
// many were saved. Writes run detached from caller cancellation so a unit that
// has started recording finishes. An insert that loses to a concurrent run's
// identical finding is skipped; any other store error stops the batch.
func (r *Recorder) Record(ctx context.Context, findings []models.Finding) (int, error) {
	ctx = context.WithoutCancel(ctx)
	saved := 0
	for _, f := range findings {
		existing, found, err := r.store.FindOpenOrAcknowledged(ctx, f.UnitID, f.Type, f.PeriodStart)
		if err != nil {
			return saved, utils.NewAppError("record finding", "dedup lookup", err)
		}
		if found {
			r.logger.Debug("duplicate finding skipped",
				slog.String("unit_id", f.UnitID),
				slog.String("type", string(f.Type)),
				slog.Time("period_start", f.PeriodStart),
				slog.String("existing_id", existing.ID),
			)
			continue
		}

		if f.ID == "" {
			f.ID = r.newID()
		}
		f.Status = models.StatusOpen
		f.Resolution = nil

		stored, err := r.store.Insert(ctx, f)
		if errors.Is(err, utils.ErrConflict) {
			r.logger.Debug("concurrent duplicate finding skipped",
				slog.String("unit_id", f.UnitID),
				slog.String("type", string(f.Type)),
				slog.Time("period_start", f.PeriodStart),
			)
			continue
		}
		if err != nil {
			return saved, utils.NewAppError("record finding", "insert", err)
		}
		saved++
		metrics.IncFindingSaved(string(stored.Type))
		r.publish(ctx, stored)
	}
	return saved, nil
}

func (r *Recorder) publish(ctx context.Context, f models.Finding) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, f); err != nil {
		r.logger.Warn("publish finding failed", slog.String("finding_id", f.ID), slog.Any("error", err))
	}
}
