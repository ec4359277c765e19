package crontab

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidExpression is returned for schedules with fewer than five fields
	// or with embedded line breaks.
	ErrInvalidExpression = errors.New("invalid cron expression")

	// ErrInvalidName is returned for an empty function name or one that would
	// not survive as a single token in the tag comment.
	ErrInvalidName = errors.New("invalid function name")

	// ErrTableRead is returned when the schedule table exists but cannot be read.
	ErrTableRead = errors.New("failed to read schedule table")

	// ErrTableWrite is returned when replacing the schedule table fails.
	// The mirror is never touched after this error.
	ErrTableWrite = errors.New("failed to update schedule table")
)

// ToolError carries the diagnostic output of the external tool that
// manages the table.
type ToolError struct {
	Op     string // "read" or "write"
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("crontab %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crontab %s: %v: %s", e.Op, e.Err, msg)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the tool's stderr, if any, for reporting to clients.
func Diagnostic(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return strings.TrimSpace(toolErr.Stderr)
	}
	return ""
}
