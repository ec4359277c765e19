package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/crontab"
	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/logger"
	"github.com/aatumaykin/pifaas/internal/metrics"
	"github.com/aatumaykin/pifaas/internal/mirror"
	"github.com/aatumaykin/pifaas/internal/pidfile"
	"github.com/aatumaykin/pifaas/internal/runlog"
	"github.com/aatumaykin/pifaas/internal/server"
	"github.com/aatumaykin/pifaas/internal/workspace"
)

// build creates components from the config.
func (a *App) build() error {
	cfg := a.config

	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	// Интерфейсы получают nil только явно, иначе typed nil.
	var (
		invocationRecorder functions.Recorder
		changeRecorder     functions.ChangeRecorder
		reconcileRecorder  crontab.Recorder
		httpRecorder       server.Recorder
	)
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
		invocationRecorder = a.metrics
		changeRecorder = a.metrics
		reconcileRecorder = a.metrics
		httpRecorder = a.metrics
	}

	a.workspace = workspace.New(a.fs, cfg.Functions.Dir, cfg.Logs.Dir)
	a.runs = runlog.New(a.fs, cfg.Logs.Dir)
	a.executor = functions.NewProcessExecutor(cfg.Functions.Dir, a.runs,
		a.logger.With(logger.Field{Key: "component", Value: "executor"}), invocationRecorder)
	a.mirror = mirror.NewStore(a.fs, cfg.Schedule.MirrorFile,
		a.logger.With(logger.Field{Key: "component", Value: "mirror"}))

	if a.table == nil {
		table, err := newTable(a.fs, cfg.Schedule)
		if err != nil {
			return err
		}
		a.table = table
	}

	var tableOpts []crontab.ReconcilerOption
	if cfg.Schedule.Backend == config.BackendFile && cfg.Schedule.CrontabUser != "" {
		tableOpts = append(tableOpts, crontab.WithSystemUser(cfg.Schedule.CrontabUser))
	}
	a.reconciler = crontab.NewReconciler(a.table, a.mirror, cfg.Schedule.Tag,
		a.logger.With(logger.Field{Key: "component", Value: "crontab"}), reconcileRecorder, tableOpts...)

	command, err := a.commandFunc()
	if err != nil {
		return err
	}

	deps := server.Deps{
		Functions: a.executor,
		Scheduler: a.reconciler,
		Schedules: a.mirror,
		Logs:      a.runs,
		Command:   command,
		Recorder:  httpRecorder,
		Logger:    a.logger.With(logger.Field{Key: "component", Value: "http"}),
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics.Handler()
	}

	a.server = server.New(server.Config{
		Listen:            cfg.Server.Listen,
		Serialize:         cfg.Server.Serialize,
		RateLimit:         cfg.Server.RateLimit,
		RateBurst:         cfg.Server.RateBurst,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ShutdownTimeout:   time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
	}, deps)

	if cfg.Functions.Watch {
		a.watcher = functions.NewWatcher(cfg.Functions.Dir,
			a.logger.With(logger.Field{Key: "component", Value: "watcher"}),
			a.scheduledExpression, changeRecorder)
	}

	return nil
}

func newTable(fsys afero.Fs, cfg config.ScheduleConfig) (crontab.Table, error) {
	switch cfg.Backend {
	case config.BackendCrontab:
		return crontab.NewCommandTable(cfg.CrontabBin, cfg.CrontabUser), nil
	case config.BackendFile:
		return crontab.NewFileTable(fsys, cfg.TableFile), nil
	default:
		return nil, fmt.Errorf("unsupported schedule backend: %s", cfg.Backend)
	}
}

// Bootstrap creates the functions and logs directories and an empty mirror.
func (a *App) Bootstrap() error {
	if err := a.workspace.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to prepare workspace: %w", err)
	}
	if err := a.mirror.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare schedule mirror: %w", err)
	}
	return nil
}

// Start bootstraps, takes the PID file, starts the HTTP server and the
// watcher, and notifies systemd.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already started")
	}

	if err := a.Bootstrap(); err != nil {
		return err
	}

	if a.config.Runtime.PIDFile != "" {
		release, err := pidfile.Acquire(a.config.Runtime.PIDFile)
		if err != nil {
			return err
		}
		a.release = release
	}

	if err := a.server.Start(); err != nil {
		a.releasePID()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.watcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.watcher.Run(runCtx); err != nil {
				a.logger.Warn("functions watcher stopped", logger.Field{Key: "error", Value: err.Error()})
			}
		}()
	}

	a.started = true
	a.notify(sdReady)
	return nil
}

// scheduledExpression looks a function up in the mirror for the watcher.
func (a *App) scheduledExpression(name string) (string, bool) {
	all, err := a.mirror.All()
	if err != nil {
		return "", false
	}
	expr, ok := all[name]
	return expr, ok
}

// resolveExecutable returns the absolute path of the running binary.
func resolveExecutable(path string) (string, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to resolve executable: %w", err)
		}
		path = exe
	}
	return filepath.Abs(path)
}
