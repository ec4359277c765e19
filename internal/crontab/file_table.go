package crontab

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileTable keeps the table in a plain file. The lines are in per-user
// crontab format unless the Reconciler is built WithSystemUser, which adds
// the user column a drop-in under /etc/cron.d needs. Writes go to a
// temporary file that is renamed over the target.
type FileTable struct {
	fs   afero.Fs
	path string
}

// NewFileTable returns a table stored at path on fsys.
func NewFileTable(fsys afero.Fs, path string) *FileTable {
	return &FileTable{fs: fsys, path: path}
}

func (t *FileTable) Read(_ context.Context) (string, error) {
	data, err := afero.ReadFile(t.fs, t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrTableRead, &ToolError{Op: "read", Err: err})
	}
	return string(data), nil
}

func (t *FileTable) Write(_ context.Context, content string) error {
	if err := t.fs.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrTableWrite, &ToolError{Op: "write", Err: err})
	}

	tmp := t.path + ".tmp"
	if err := afero.WriteFile(t.fs, tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrTableWrite, &ToolError{Op: "write", Err: err})
	}
	if err := t.fs.Rename(tmp, t.path); err != nil {
		_ = t.fs.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrTableWrite, &ToolError{Op: "write", Err: err})
	}
	return nil
}
