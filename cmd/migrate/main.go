// migrate applies or rolls back the database schema.
//
// Usage: go run ./cmd/migrate [up|down|version]
package main

import (
	"fmt"
	"os"

	"commercial-docs/internal/config"
	"commercial-docs/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := config.NewLogger("info", true)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("migrations only apply to the postgres store")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = db.Migrate(cfg.DatabaseURL, logger)
	case "down":
		err = db.Rollback(cfg.DatabaseURL, logger)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = db.Version(cfg.DatabaseURL)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		logger.Fatal().Str("command", cmd).Msg("usage: migrate [up|down|version]")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
}
