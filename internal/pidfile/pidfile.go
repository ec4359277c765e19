// Package pidfile keeps a single serve instance per PID file, so two hosts
// never rewrite the same schedule table concurrently.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// ErrAlreadyRunning is returned by Acquire when the file names a live process.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Write записывает PID в файл
func Write(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read читает PID из файла
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %w", path, err)
	}

	return pid, nil
}

// IsRunning проверяет что процесс запущен
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// signal 0 только проверяет существование процесса
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Acquire writes the current PID to path unless a live process already owns
// it. A stale or unreadable file is replaced. The returned func removes the
// file.
func Acquire(path string) (func() error, error) {
	pid, err := Read(path)
	switch {
	case err == nil:
		if pid != os.Getpid() && IsRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		// битый файл считаем устаревшим
	}

	if err := Write(path, os.Getpid()); err != nil {
		return nil, err
	}

	return func() error { return Remove(path) }, nil
}

// Remove удаляет PID файл
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
