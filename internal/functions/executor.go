// Package functions runs the executables placed in the functions directory
// and watches that directory for changes.
package functions

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/pifaas/internal/logger"
	"github.com/aatumaykin/pifaas/internal/runlog"
)

// Result describes one completed run. A non-zero exit code is still a
// completed run.
type Result struct {
	InvocationID string
	Output       []byte
	ExitCode     int
	Success      bool
	Duration     time.Duration
}

// Executor runs a function by name with payload on stdin.
type Executor interface {
	Execute(name string, payload []byte) (Result, error)
}

// Recorder receives invocation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordInvocation(function, status string, duration time.Duration)
}

// ProcessExecutor runs functions as child processes.
type ProcessExecutor struct {
	dir      string
	runs     *runlog.Log
	logger   *logger.Logger
	recorder Recorder
}

// NewProcessExecutor creates an executor for the functions in dir. Every
// completed run is appended to runs. recorder may be nil.
func NewProcessExecutor(dir string, runs *runlog.Log, log *logger.Logger, recorder Recorder) *ProcessExecutor {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &ProcessExecutor{
		dir:      dir,
		runs:     runs,
		logger:   log,
		recorder: recorder,
	}
}

// Dir returns the functions directory.
func (e *ProcessExecutor) Dir() string {
	return e.dir
}

// ScriptPath returns the absolute path of name's executable.
func (e *ProcessExecutor) ScriptPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(e.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve function path: %w", err)
	}
	return abs, nil
}

// Lookup returns the absolute path of name, or ErrNotFound when no such file
// exists.
func (e *ProcessExecutor) Lookup(name string) (string, error) {
	path, err := e.ScriptPath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat function: %w", err)
	}
	return path, nil
}

// Execute runs name with payload on stdin and waits for it to exit. Stdout and
// stderr are captured into one buffer in arrival order. The child inherits the
// working directory of this process, is not tied to any request and is never
// killed.
func (e *ProcessExecutor) Execute(name string, payload []byte) (Result, error) {
	path, err := e.Lookup(name)
	if err != nil {
		if errors.Is(err, ErrInvalidName) {
			// Такой файл не может существовать в каталоге функций.
			return Result{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return Result{}, err
	}

	id := uuid.New().String()
	log := e.logger.With(
		logger.Field{Key: "function", Value: name},
		logger.Field{Key: "invocation_id", Value: id})

	var output bytes.Buffer
	cmd := exec.Command(path)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.recordInvocation(name, "error", time.Since(start))
		if errors.Is(err, fs.ErrPermission) {
			log.Warn("function is not executable", logger.Field{Key: "path", Value: path})
			return Result{}, fmt.Errorf("%w: %s", ErrPermission, name)
		}
		log.Error("failed to start function", err)
		return Result{}, fmt.Errorf("failed to start function %s: %w", name, err)
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)

	result := Result{
		InvocationID: id,
		Output:       output.Bytes(),
		Duration:     duration,
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.Success = true
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		e.recordInvocation(name, "error", duration)
		log.Error("function wait failed", waitErr)
		return Result{}, fmt.Errorf("failed to run function %s: %w", name, waitErr)
	}

	if e.runs != nil {
		if err := e.runs.Append(name, result.Output); err != nil {
			log.Error("failed to append run log", err)
		}
	}

	status := "success"
	if !result.Success {
		status = "failure"
	}
	e.recordInvocation(name, status, duration)

	log.Info("function finished",
		logger.Field{Key: "exit_code", Value: result.ExitCode},
		logger.Field{Key: "duration_ms", Value: duration.Milliseconds()},
		logger.Field{Key: "output_bytes", Value: len(result.Output)})

	return result, nil
}

func (e *ProcessExecutor) recordInvocation(name, status string, duration time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordInvocation(name, status, duration)
	}
}
