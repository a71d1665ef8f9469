// seed loads the default tax catalog, numbering schemes and demo products.
// With -reset it first empties every table, including documents and stock
// movements.
//
// Usage: go run ./cmd/seed [-reset]
package main

import (
	"context"
	"flag"

	"commercial-docs/internal/config"
	"commercial-docs/internal/db"
	"commercial-docs/internal/store/postgres"
	"commercial-docs/internal/store/seed"
)

func main() {
	reset := flag.Bool("reset", false, "truncate all tables before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := config.NewLogger("info", true)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seeding only applies to the postgres store")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer pool.Close()

	if *reset {
		logger.Warn().Msg("truncating all tables")
		if err := postgres.Truncate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to truncate")
		}
	}
	if err := postgres.Seed(ctx, pool, seed.Default()); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed")
	}
	logger.Info().Msg("seed data loaded")
}
