package postgres

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/helioscope/solar-anomaly/internal/utils"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *DB) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return utils.NewAppError("postgres.Migrate", "set dialect", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return utils.NewAppError("postgres.Migrate", "apply migrations", err)
	}
	return nil
}
