// Package store selects the core.Store implementation named by the
// configuration.
package store

import (
	"context"
	"fmt"

	"commercial-docs/internal/config"
	"commercial-docs/internal/core"
	"commercial-docs/internal/db"
	"commercial-docs/internal/store/memory"
	"commercial-docs/internal/store/postgres"

	"github.com/rs/zerolog"
)

// Open returns the configured store and a function releasing its resources.
// The memory driver starts from the default seed.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		return memory.NewSeeded(), func() {}, nil

	case config.DriverPostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
