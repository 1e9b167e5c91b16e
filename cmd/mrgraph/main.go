package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/mrgraph/cmd/mrgraph/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	config, err := app.NewConfigFromCLI(os.Args[1:])
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	logLevel.Set(config.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if config.ListSessions {
		err = app.ListSessions(ctx, config, os.Stdout)
	} else {
		err = app.Run(ctx, config, logger)
	}

	if err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
