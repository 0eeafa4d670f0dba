package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

const findingColumns = `id, unit_id, type, severity, detected_at, period_start, period_end,
	reading_ids, description, metadata, status, resolution`

func scanFinding(row pgx.Row) (models.Finding, error) {
	var (
		f                    models.Finding
		metadata, resolution []byte
	)
	err := row.Scan(&f.ID, &f.UnitID, &f.Type, &f.Severity, &f.DetectedAt, &f.PeriodStart, &f.PeriodEnd,
		&f.ReadingIDs, &f.Description, &metadata, &f.Status, &resolution)
	if err != nil {
		return models.Finding{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return models.Finding{}, fmt.Errorf("decode metadata for finding %s: %w", f.ID, err)
		}
	}
	if len(resolution) > 0 {
		f.Resolution = &models.Resolution{}
		if err := json.Unmarshal(resolution, f.Resolution); err != nil {
			return models.Finding{}, fmt.Errorf("decode resolution for finding %s: %w", f.ID, err)
		}
	}
	f.DetectedAt = f.DetectedAt.UTC()
	f.PeriodStart = f.PeriodStart.UTC()
	if f.PeriodEnd != nil {
		end := f.PeriodEnd.UTC()
		f.PeriodEnd = &end
	}
	return f, nil
}

// FindOpenOrAcknowledged looks up an active finding by its dedup key.
func (db *DB) FindOpenOrAcknowledged(ctx context.Context, unitID string, typ models.FindingType, periodStart time.Time) (models.Finding, bool, error) {
	f, err := scanFinding(db.Pool.QueryRow(ctx, `
		SELECT `+findingColumns+`
		FROM findings
		WHERE unit_id = $1 AND type = $2 AND period_start = $3 AND status IN ('open', 'acknowledged')
		LIMIT 1
	`, unitID, string(typ), periodStart.UTC()))
	if isNoRows(err) {
		return models.Finding{}, false, nil
	}
	if err != nil {
		return models.Finding{}, false, utils.NewAppError("postgres.FindOpenOrAcknowledged", "query finding", err)
	}
	return f, true, nil
}

// Insert stores a new finding.
func (db *DB) Insert(ctx context.Context, f models.Finding) (models.Finding, error) {
	if f.ID == "" {
		return models.Finding{}, utils.NewValidationError("id", f.ID, "finding id is required")
	}
	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return models.Finding{}, utils.NewAppError("postgres.Insert", "encode metadata", err)
	}
	var resolution []byte
	if f.Resolution != nil {
		if resolution, err = json.Marshal(f.Resolution); err != nil {
			return models.Finding{}, utils.NewAppError("postgres.Insert", "encode resolution", err)
		}
	}
	readingIDs := f.ReadingIDs
	if readingIDs == nil {
		readingIDs = []string{}
	}
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO findings (`+findingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (unit_id, type, period_start) WHERE status IN ('open', 'acknowledged') DO NOTHING
	`, f.ID, f.UnitID, string(f.Type), string(f.Severity), f.DetectedAt.UTC(), f.PeriodStart.UTC(), f.PeriodEnd,
		readingIDs, f.Description, metadata, string(f.Status), resolution)
	if isUniqueViolation(err) {
		return models.Finding{}, utils.NewAppError("postgres.Insert", "finding "+f.ID+" already stored", errors.Join(utils.ErrConflict, err))
	}
	if err != nil {
		return models.Finding{}, utils.NewAppError("postgres.Insert", "insert finding", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Finding{}, utils.NewAppError("postgres.Insert", "active finding already exists for "+f.UnitID, utils.ErrConflict)
	}
	return f, nil
}

// UpdateStatus moves a finding through its review lifecycle.
func (db *DB) UpdateStatus(ctx context.Context, id string, status models.FindingStatus, resolution *models.Resolution) error {
	if !status.Valid() {
		return utils.NewValidationError("status", status, "unknown status")
	}
	var res []byte
	if resolution != nil {
		b, err := json.Marshal(resolution)
		if err != nil {
			return utils.NewAppError("postgres.UpdateStatus", "encode resolution", err)
		}
		res = b
	}
	tag, err := db.Pool.Exec(ctx, `UPDATE findings SET status = $2, resolution = $3 WHERE id = $1`, id, string(status), res)
	if err != nil {
		return utils.NewAppError("postgres.UpdateStatus", "update finding", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NotFoundf("finding %s", id)
	}
	return nil
}

// Find returns findings matching q, newest detection first.
func (db *DB) Find(ctx context.Context, q models.FindingQuery) ([]models.Finding, error) {
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	sql, args := findSQL(q)
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, utils.NewAppError("postgres.Find", "query findings", err)
	}
	findings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Finding, error) {
		return scanFinding(row)
	})
	if err != nil {
		return nil, utils.NewAppError("postgres.Find", "scan findings", err)
	}
	return findings, nil
}

// CountByGroup counts findings matching q per value of field. Paging is ignored.
func (db *DB) CountByGroup(ctx context.Context, q models.FindingQuery, field models.GroupField) (map[string]int, error) {
	q.Limit, q.Offset = 0, 0
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	sql, args, err := countByGroupSQL(q, field)
	if err != nil {
		return nil, utils.NewValidationError("group", field, err.Error())
	}
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, utils.NewAppError("postgres.CountByGroup", "query counts", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, utils.NewAppError("postgres.CountByGroup", "scan counts", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError("postgres.CountByGroup", "iterate counts", err)
	}
	return counts, nil
}
