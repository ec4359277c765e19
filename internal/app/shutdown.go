package app

import (
	"context"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/aatumaykin/pifaas/internal/logger"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// Shutdown performs graceful shutdown of all components.
// It stops the application in the following order:
//  1. Notifies systemd that the service is stopping
//  2. Stops the HTTP server, waiting for in-flight invocations
//  3. Stops the functions watcher
//  4. Removes the PID file
//
// Calling Shutdown on an app that is not running is a no-op.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.notify(sdStopping)

	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to stop HTTP server", err)
		firstErr = err
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.releasePID()

	a.started = false
	a.logger.Info("Application shutdown complete")
	return firstErr
}

func (a *App) releasePID() {
	if a.release == nil {
		return
	}
	if err := a.release(); err != nil {
		a.logger.Error("Failed to remove PID file", err)
	}
	a.release = nil
}

// notify sends state to systemd when running under a notify-type unit.
func (a *App) notify(state string) {
	if !a.config.Runtime.SystemdNotify {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.logger.Warn("systemd notification failed",
			logger.Field{Key: "state", Value: state},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if sent {
		a.logger.Debug("systemd notified", logger.Field{Key: "state", Value: state})
	}
}
