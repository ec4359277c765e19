package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aatumaykin/pifaas/internal/app"
	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/constants"
	"github.com/aatumaykin/pifaas/internal/logger"
)

// loadConfig reads .env and the config file, applies flag overrides and
// validates. A missing config file means defaults.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvOptional(constants.DefaultEnvPath); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", constants.DefaultEnvPath, err)
	}

	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, validationError(errs)
	}
	return cfg, nil
}

func validationError(errs []error) error {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(constants.MsgConfigValidationFailed, "\n"))
	for _, e := range errs {
		b.WriteString("\n")
		b.WriteString(strings.TrimSuffix(fmt.Sprintf(constants.MsgConfigValidationItem, e), "\n"))
	}
	return errors.New(b.String())
}

// newLogger builds the logger from config. One-shot commands keep stdout
// for their own output, so stdout logging is moved to errOut.
func newLogger(cfg *config.Config, errOut io.Writer, oneShot bool) (*logger.Logger, error) {
	lc := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if oneShot {
		if lc.Output == "stdout" {
			lc.Writer = errOut
		}
		if logLevel == "" {
			lc.Level = "warn"
		}
	}
	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// newApp loads everything a one-shot command needs.
func newApp(errOut io.Writer) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, errOut, true)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, log, appOptions()...)
}

// appOptions passes the config file on to wrapper-mode cron lines when one
// is actually in use.
func appOptions() []app.Option {
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}
	return []app.Option{app.WithConfigPath(configPath)}
}
