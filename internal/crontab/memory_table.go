package crontab

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTable is an in-memory Table with failure injection. It stands in for
// the host table in tests and dry runs.
type MemoryTable struct {
	mu       sync.Mutex
	content  string
	writes   int
	readErr  error
	writeErr error
	stderr   string
}

// NewMemoryTable returns a table holding content.
func NewMemoryTable(content string) *MemoryTable {
	return &MemoryTable{content: content}
}

func (t *MemoryTable) Read(_ context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return "", fmt.Errorf("%w: %w", ErrTableRead, &ToolError{Op: "read", Stderr: t.stderr, Err: t.readErr})
	}
	return t.content, nil
}

func (t *MemoryTable) Write(_ context.Context, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrTableWrite, &ToolError{Op: "write", Stderr: t.stderr, Err: t.writeErr})
	}
	t.content = content
	t.writes++
	return nil
}

// Content returns the current table text.
func (t *MemoryTable) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content
}

// Set replaces the table text directly, as another actor on the host would.
func (t *MemoryTable) Set(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.content = content
}

// Writes reports how many successful writes happened.
func (t *MemoryTable) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// FailReads makes subsequent reads fail with err; nil restores them.
func (t *MemoryTable) FailReads(err error, stderr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
	t.stderr = stderr
}

// FailWrites makes subsequent writes fail with err; nil restores them.
func (t *MemoryTable) FailWrites(err error, stderr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
	t.stderr = stderr
}
