package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// FindReadings returns a unit's readings at or after since, oldest first.
func (db *DB) FindReadings(ctx context.Context, unitID string, since time.Time) ([]models.Reading, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, unit_id, ts, energy_wh, interval_hours, weather
		FROM readings
		WHERE unit_id = $1 AND ts >= $2
		ORDER BY ts, id
	`, unitID, since)
	if err != nil {
		return nil, utils.NewAppError("postgres.FindReadings", "query readings", err)
	}
	readings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Reading, error) {
		var (
			r       models.Reading
			weather []byte
		)
		if err := row.Scan(&r.ID, &r.UnitID, &r.Timestamp, &r.EnergyWh, &r.IntervalHours, &weather); err != nil {
			return models.Reading{}, err
		}
		if len(weather) > 0 {
			r.Weather = &models.WeatherSnapshot{}
			if err := json.Unmarshal(weather, r.Weather); err != nil {
				return models.Reading{}, fmt.Errorf("decode weather for reading %s: %w", r.ID, err)
			}
		}
		r.Timestamp = r.Timestamp.UTC()
		return r, nil
	})
	if err != nil {
		return nil, utils.NewAppError("postgres.FindReadings", "scan readings", err)
	}
	return readings, nil
}

// CountReadings returns the total number of stored readings.
func (db *DB) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM readings`).Scan(&n); err != nil {
		return 0, utils.NewAppError("postgres.CountReadings", "count readings", err)
	}
	return n, nil
}

// InsertReadings writes readings in one batch, ignoring IDs that already exist.
func (db *DB) InsertReadings(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range readings {
		var weather []byte
		if r.Weather != nil {
			b, err := json.Marshal(r.Weather)
			if err != nil {
				return utils.NewAppError("postgres.InsertReadings", "encode weather for "+r.ID, err)
			}
			weather = b
		}
		batch.Queue(`
			INSERT INTO readings (id, unit_id, ts, energy_wh, interval_hours, weather)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.UnitID, r.Timestamp.UTC(), r.EnergyWh, r.IntervalHours, weather)
	}
	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return utils.NewAppError("postgres.InsertReadings", "insert readings", err)
	}
	return nil
}
