package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

const unitColumns = `id, name, capacity_w, status, latitude, longitude`

func scanUnit(row pgx.Row) (models.Unit, error) {
	var (
		u        models.Unit
		lat, lon *float64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.CapacityW, &u.Status, &lat, &lon); err != nil {
		return models.Unit{}, err
	}
	if lat != nil && lon != nil {
		u.Location = &models.GeoLocation{Latitude: *lat, Longitude: *lon}
	}
	return u, nil
}

// FindActiveUnits returns units with status active, ordered by ID.
func (db *DB) FindActiveUnits(ctx context.Context) ([]models.Unit, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE status = $1 ORDER BY id`, models.UnitActive)
	if err != nil {
		return nil, utils.NewAppError("postgres.FindActiveUnits", "query units", err)
	}
	units, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Unit, error) {
		return scanUnit(row)
	})
	if err != nil {
		return nil, utils.NewAppError("postgres.FindActiveUnits", "scan units", err)
	}
	return units, nil
}

// FindUnit loads one unit by ID.
func (db *DB) FindUnit(ctx context.Context, id string) (models.Unit, error) {
	u, err := scanUnit(db.Pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if isNoRows(err) {
		return models.Unit{}, utils.NotFoundf("unit %s", id)
	}
	if err != nil {
		return models.Unit{}, utils.NewAppError("postgres.FindUnit", "query unit", err)
	}
	return u, nil
}

// UpsertUnit inserts or replaces a unit.
func (db *DB) UpsertUnit(ctx context.Context, u models.Unit) error {
	var lat, lon *float64
	if u.Location != nil {
		lat, lon = &u.Location.Latitude, &u.Location.Longitude
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO units (id, name, capacity_w, status, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity_w = EXCLUDED.capacity_w,
			status = EXCLUDED.status,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude
	`, u.ID, u.Name, u.CapacityW, u.Status, lat, lon)
	if err != nil {
		return utils.NewAppError("postgres.UpsertUnit", "upsert unit "+u.ID, err)
	}
	return nil
}
