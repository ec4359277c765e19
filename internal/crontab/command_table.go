package crontab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandTable manages the table through the crontab(1) tool:
// "crontab -l" to read and "crontab -" to replace.
type CommandTable struct {
	bin  string
	user string
}

// NewCommandTable returns a table backed by bin (usually "crontab").
// When user is not empty the table of that user is managed via "-u".
func NewCommandTable(bin, user string) *CommandTable {
	if bin == "" {
		bin = "crontab"
	}
	return &CommandTable{bin: bin, user: user}
}

func (t *CommandTable) args(extra ...string) []string {
	var args []string
	if t.user != "" {
		args = append(args, "-u", t.user)
	}
	return append(args, extra...)
}

// Read runs "crontab -l". A non-zero exit that reports a missing table is
// treated as an empty table.
func (t *CommandTable) Read(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin, t.args("-l")...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && isMissingTable(stderr.String()) {
		return "", nil
	}

	return "", fmt.Errorf("%w: %w", ErrTableRead, &ToolError{Op: "read", Stderr: stderr.String(), Err: err})
}

// Write runs "crontab -" with content on stdin.
func (t *CommandTable) Write(ctx context.Context, content string) error {
	cmd := exec.CommandContext(ctx, t.bin, t.args("-")...)
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %w", ErrTableWrite, &ToolError{Op: "write", Stderr: stderr.String(), Err: err})
	}
	return nil
}

// isMissingTable recognises the "no table yet" answers of the common cron
// implementations (vixie/cronie print "no crontab for <user>", busybox
// reports a missing file, some exit 1 silently).
func isMissingTable(stderr string) bool {
	s := strings.ToLower(strings.TrimSpace(stderr))
	return s == "" ||
		strings.Contains(s, "no crontab") ||
		strings.Contains(s, "no such file")
}
