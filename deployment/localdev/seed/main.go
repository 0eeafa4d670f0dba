// Command seed writes synthetic units and hourly telemetry, including injected
// faults, into the Postgres record store for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/helioscope/solar-anomaly/internal/store/postgres"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL = flag.String("database-url", os.Getenv("SOLAR_ANOMALY_DATABASE_URL"), "Postgres connection string")
		units       = flag.Int("units", 12, "Number of units to create")
		days        = flag.Int("days", 30, "Days of hourly history per unit")
		capacity    = flag.Float64("capacity", 1500, "Nameplate capacity per unit in watts")
		seed        = flag.Uint64("seed", 42, "Random seed")
	)
	flag.Parse()

	logger := utils.NewLogger("info", false).With("component", "seed")
	if *databaseURL == "" {
		logger.Error("database url is required (-database-url or SOLAR_ANOMALY_DATABASE_URL)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, *databaseURL)
	if err != nil {
		logger.Error("connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	fleet, readings, faults := Generate(Plan{Units: *units, Days: *days, CapacityW: *capacity, Seed: *seed, Now: time.Now()})
	for _, u := range fleet {
		if err := db.UpsertUnit(ctx, u); err != nil {
			logger.Error("upsert unit failed", slog.String("unit_id", u.ID), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("unit seeded", slog.String("unit_id", u.ID), slog.String("fault", string(faults[u.ID])))
	}

	const batchSize = 1000
	for i := 0; i < len(readings); i += batchSize {
		if err := db.InsertReadings(ctx, readings[i:min(i+batchSize, len(readings))]); err != nil {
			logger.Error("insert readings failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("seed complete", slog.Int("units", len(fleet)), slog.Int("readings", len(readings)))
}
