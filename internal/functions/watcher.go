package functions

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/aatumaykin/pifaas/internal/logger"
)

// ScheduleLookup reports the schedule registered for a function, if any.
type ScheduleLookup func(name string) (expr string, ok bool)

// ChangeRecorder counts observed changes. *metrics.Metrics implements it.
type ChangeRecorder interface {
	RecordFunctionChange(change string)
}

// Watcher logs functions appearing in and disappearing from the functions
// directory. It never changes the schedule table.
type Watcher struct {
	dir       string
	logger    *logger.Logger
	scheduled ScheduleLookup
	recorder  ChangeRecorder
}

// NewWatcher creates a watcher for dir. scheduled and recorder may be nil.
func NewWatcher(dir string, log *logger.Logger, scheduled ScheduleLookup, recorder ChangeRecorder) *Watcher {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Watcher{
		dir:       dir,
		logger:    log,
		scheduled: scheduled,
		recorder:  recorder,
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create functions watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch functions directory: %w", err)
	}

	w.logger.Debug("functions watcher started", logger.Field{Key: "dir", Value: w.dir})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("functions watcher error", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if ValidateName(name) != nil {
		// временные файлы редакторов и т.п.
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.record("created")
		w.logger.Info("function deployed", logger.Field{Key: "function", Value: name})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.record("removed")
		fields := []logger.Field{{Key: "function", Value: name}}
		if w.scheduled != nil {
			if expr, ok := w.scheduled(name); ok {
				fields = append(fields, logger.Field{Key: "expression", Value: expr})
				w.logger.Warn("scheduled function removed, its cron line is still installed", fields...)
				return
			}
		}
		w.logger.Info("function removed", fields...)
	case ev.Has(fsnotify.Chmod):
		w.record("chmod")
		w.logger.Debug("function permissions changed", logger.Field{Key: "function", Value: name})
	}
}

func (w *Watcher) record(change string) {
	if w.recorder != nil {
		w.recorder.RecordFunctionChange(change)
	}
}
