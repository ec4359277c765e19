// Package crontab keeps the host scheduler's table in sync with the set of
// scheduled functions.
//
// The table is shared machine state. It is read as a whole, filtered and
// written back as a whole; there is no locking against other writers. An edit
// made by another process between Read and Write is lost (last writer wins),
// and nothing here detects or retries that. Within one process the
// Reconciler serializes its own read-modify-write cycles.
package crontab

import "context"

// Table is the external schedule table.
type Table interface {
	// Read returns the full table text. A table that does not exist yet
	// reads as "" with a nil error.
	Read(ctx context.Context) (string, error)

	// Write replaces the full table text in a single operation.
	Write(ctx context.Context, content string) error
}
