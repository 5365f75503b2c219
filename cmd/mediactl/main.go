package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/mediactl"
	"github.com/dmitrijs2005/mediavault/internal/server"
	"github.com/dmitrijs2005/mediavault/internal/server/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries command output
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	root := mediactl.NewRootCommand(mediactl.Deps{
		LoadConfig:   config.LoadConfig,
		OpenMigrator: openMigrator,
		Logger:       logger,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openMigrator(ctx context.Context, cfg *config.Config, logger logging.Logger) (mediactl.Migrator, func() error, error) {
	rt, err := server.Bootstrap(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return rt.Migrations, rt.Close, nil
}
