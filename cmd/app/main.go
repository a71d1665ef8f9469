package main

import (
	"bufio"
	"context"
	"errors"
	"os"

	"commercial-docs/internal/adapters/cli"
	"commercial-docs/internal/adapters/repl"
	"commercial-docs/internal/app"
	"commercial-docs/internal/config"
	"commercial-docs/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := config.NewLogger("info", true)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()
	st, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	svc := app.New(ctx, st, logger)

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
			var refused *cli.RefusedError
			if errors.As(err, &refused) || errors.Is(err, cli.ErrUsage) {
				os.Stderr.WriteString(err.Error() + "\n")
				closeStore()
				os.Exit(2)
			}
			logger.Error().Err(err).Msg("command failed")
			closeStore()
			os.Exit(1)
		}
		return
	}

	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
}
