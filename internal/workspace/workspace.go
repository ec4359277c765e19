// Package workspace prepares the on-disk layout the host works in: the
// functions directory and the run log directory.
//
// Example usage:
//
//	ws := workspace.New(afero.NewOsFs(), "./functions", "./logs")
//	if err := ws.EnsureDirs(); err != nil {
//	    return err
//	}
package workspace

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// Workspace holds the directories the host reads functions from and writes
// run logs to.
type Workspace struct {
	fs           afero.Fs
	functionsDir string
	logsDir      string
}

// New creates a workspace on fsys.
func New(fsys afero.Fs, functionsDir, logsDir string) *Workspace {
	return &Workspace{
		fs:           fsys,
		functionsDir: functionsDir,
		logsDir:      logsDir,
	}
}

// FunctionsDir returns the functions directory.
func (w *Workspace) FunctionsDir() string {
	return w.functionsDir
}

// LogsDir returns the run log directory.
func (w *Workspace) LogsDir() string {
	return w.logsDir
}

// EnsureDirs creates both directories when missing.
func (w *Workspace) EnsureDirs() error {
	if err := w.EnsureDir(w.functionsDir); err != nil {
		return fmt.Errorf("functions directory: %w", err)
	}
	if err := w.EnsureDir(w.logsDir); err != nil {
		return fmt.Errorf("logs directory: %w", err)
	}
	return nil
}

// EnsureDir creates path if it doesn't exist. An existing non-directory at
// path is an error.
func (w *Workspace) EnsureDir(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}

	info, err := w.fs.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", path)
		}
		return nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to access %s: %w", path, err)
	}

	if err := w.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	return nil
}
