// Package runlog keeps one append-only text log per function. Every run adds
// a timestamp marker line followed by the combined output of the process.
// Files are never rotated or truncated.
package runlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Read when a function has no log yet.
var ErrNotFound = errors.New("no logs found for function")

// MarkerLayout formats the run timestamp (local time, microseconds).
const MarkerLayout = "2006-01-02T15:04:05.000000"

// Log is the per-function log directory.
type Log struct {
	fs  afero.Fs
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New returns a log rooted at dir on fsys.
func New(fsys afero.Fs, dir string) *Log {
	return &Log{fs: fsys, dir: dir, now: time.Now}
}

// Dir returns the log directory.
func (l *Log) Dir() string {
	return l.dir
}

// Path returns the log file for name.
func (l *Log) Path(name string) string {
	return filepath.Join(l.dir, name+".log")
}

// Marker renders the line that precedes a run's output.
func Marker(at time.Time) string {
	return fmt.Sprintf("\n--- Run at %s ---\n", at.Format(MarkerLayout))
}

// Append writes a marker and output for one run of name. The write is
// complete when Append returns.
func (l *Log) Append(name string, output []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fs.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := l.fs.OpenFile(l.Path(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	record := make([]byte, 0, len(output)+64)
	record = append(record, Marker(l.now())...)
	record = append(record, output...)
	record = append(record, '\n')

	if _, err := f.Write(record); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}

// Read returns the whole log of name.
func (l *Log) Read(name string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, l.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}
	return data, nil
}
