package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/pifaas/internal/app"
	"github.com/aatumaykin/pifaas/internal/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP function host (main command)",
	Long: `Start the HTTP function host with the given configuration.
Functions are executables in the functions directory; POST /<name> runs one
with the request body on stdin. Schedules are installed into the host crontab.

A missing config file is not an error: defaults listen on 0.0.0.0:8080 and use
./functions, ./logs and ./schedules.json.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	log.Info("🚀 Starting pifaas",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "listen", Value: cfg.Server.Listen},
		logger.Field{Key: "functions", Value: cfg.Functions.Dir},
		logger.Field{Key: "schedule_backend", Value: cfg.Schedule.Backend},
		logger.Field{Key: "command_mode", Value: cfg.Schedule.CommandMode})

	application, err := app.New(cfg, log, appOptions()...)
	if err != nil {
		log.Error("Failed to initialize application", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Error("Application stopped with error", err)
		return err
	}
	return nil
}
