// Package app wires the host together: it builds the executor, run log,
// schedule mirror, table reconciler, HTTP server and watcher from the
// configuration and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/crontab"
	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/logger"
	"github.com/aatumaykin/pifaas/internal/metrics"
	"github.com/aatumaykin/pifaas/internal/mirror"
	"github.com/aatumaykin/pifaas/internal/runlog"
	"github.com/aatumaykin/pifaas/internal/server"
	"github.com/aatumaykin/pifaas/internal/workspace"
)

// App represents the host and all of its components.
type App struct {
	config *config.Config
	logger *logger.Logger

	fs         afero.Fs
	table      crontab.Table
	executable string
	configPath string
	workDir    string

	workspace  *workspace.Workspace
	metrics    *metrics.Metrics
	runs       *runlog.Log
	executor   *functions.ProcessExecutor
	mirror     *mirror.Store
	reconciler *crontab.Reconciler
	server     *server.Server
	watcher    *functions.Watcher

	// Context management
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	release func() error
}

// Option overrides a component that is otherwise derived from the config.
type Option func(*App)

// WithFs sets the filesystem for the mirror, run logs, workspace and file
// table backend.
func WithFs(fsys afero.Fs) Option {
	return func(a *App) { a.fs = fsys }
}

// WithTable replaces the configured schedule table backend.
func WithTable(table crontab.Table) Option {
	return func(a *App) { a.table = table }
}

// WithExecutable sets the binary that wrapper-mode cron lines invoke.
func WithExecutable(path string) Option {
	return func(a *App) { a.executable = path }
}

// WithConfigPath records the config file wrapper-mode cron lines pass back.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithWorkDir sets the directory wrapper-mode cron lines change into before
// invoking the binary. Defaults to the current working directory.
func WithWorkDir(dir string) Option {
	return func(a *App) { a.workDir = dir }
}

// New builds every component. Nothing touches the disk or the table until
// Bootstrap or Run is called.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	a := &App{
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.build(); err != nil {
		return nil, err
	}
	return a, nil
}

// Run starts serving and blocks until ctx is cancelled or the HTTP server
// fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("pifaas is running",
		logger.Field{Key: "listen", Value: a.server.Addr()},
		logger.Field{Key: "functions", Value: a.workspace.FunctionsDir()})

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-a.server.Done():
		if serveErr != nil {
			a.logger.Error("HTTP server failed", serveErr)
		}
	}

	if err := a.Shutdown(context.Background()); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serveErr)
	}
	return nil
}

// Executor returns the function executor.
func (a *App) Executor() *functions.ProcessExecutor {
	return a.executor
}

// Reconciler returns the schedule table reconciler.
func (a *App) Reconciler() *crontab.Reconciler {
	return a.reconciler
}

// Mirror returns the schedule mirror.
func (a *App) Mirror() *mirror.Store {
	return a.mirror
}

// RunLog returns the per-function run log.
func (a *App) RunLog() *runlog.Log {
	return a.runs
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}
