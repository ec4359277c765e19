package crontab

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aatumaykin/pifaas/internal/logger"
)

// Mirror is the local copy of the schedule, updated only after the table
// write has succeeded.
type Mirror interface {
	Upsert(name, expr string) error
	Delete(name string) (bool, error)
}

// Recorder receives reconciliation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordReconcile(op, result string, duration time.Duration)
	SetScheduled(count int)
}

// Reconciler applies add/replace/remove of tagged lines to a Table.
type Reconciler struct {
	table    Table
	mirror   Mirror
	tag      string
	logger   *logger.Logger
	recorder Recorder
	user     string

	mu sync.Mutex
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithSystemUser switches to the system table layout (/etc/cron.d): every
// line carries a user column and managed lines run as user.
func WithSystemUser(user string) ReconcilerOption {
	return func(r *Reconciler) { r.user = user }
}

// NewReconciler creates a reconciler. recorder may be nil.
func NewReconciler(table Table, mirror Mirror, tag string, log *logger.Logger, recorder Recorder, opts ...ReconcilerOption) *Reconciler {
	if log == nil {
		log = logger.NewDiscard()
	}
	r := &Reconciler{
		table:    table,
		mirror:   mirror,
		tag:      tag,
		logger:   log,
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tag returns the ownership tag written into every managed line.
func (r *Reconciler) Tag() string {
	return r.tag
}

// Upsert makes the table contain exactly one line for name, running command
// on expr. Existing lines for name are replaced.
func (r *Reconciler) Upsert(ctx context.Context, name, expr, command string) (err error) {
	start := time.Now()
	defer func() { r.record("upsert", err, start) }()

	if err := validateName(name); err != nil {
		return err
	}
	expr, err = NormalizeExpression(expr)
	if err != nil {
		return err
	}
	if _, perr := NextRun(expr, start); perr != nil {
		r.logger.Warn("schedule not understood by the standard cron grammar, passing it through",
			logger.Field{Key: "function", Value: name},
			logger.Field{Key: "expression", Value: expr},
			logger.Field{Key: "reason", Value: perr.Error()})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}

	kept, removed := Filter(entries, r.tag, name)
	kept = append(kept, r.newEntry(expr, command, name))

	if err := r.store(ctx, kept); err != nil {
		return err
	}

	if err := r.mirror.Upsert(name, expr); err != nil {
		return fmt.Errorf("failed to update schedule mirror: %w", err)
	}

	r.logger.Info("schedule set",
		logger.Field{Key: "function", Value: name},
		logger.Field{Key: "expression", Value: expr},
		logger.Field{Key: "replaced", Value: removed})
	return nil
}

// Remove drops every line for name. Removing an unscheduled name succeeds.
func (r *Reconciler) Remove(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { r.record("remove", err, start) }()

	if err := validateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}

	kept, removed := Filter(entries, r.tag, name)
	if err := r.store(ctx, kept); err != nil {
		return err
	}

	deleted, err := r.mirror.Delete(name)
	if err != nil {
		return fmt.Errorf("failed to update schedule mirror: %w", err)
	}

	r.logger.Info("schedule removed",
		logger.Field{Key: "function", Value: name},
		logger.Field{Key: "lines", Value: removed},
		logger.Field{Key: "mirrored", Value: deleted})
	return nil
}

// Entries returns the lines of the table owned by this host, keyed by function.
func (r *Reconciler) Entries(ctx context.Context) (map[string]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return Owned(entries), nil
}

func (r *Reconciler) load(ctx context.Context) ([]Entry, error) {
	text, err := r.table.Read(ctx)
	if err != nil {
		return nil, err
	}
	if r.user != "" {
		return ParseSystemEntries(text, r.tag), nil
	}
	return ParseEntries(text, r.tag), nil
}

func (r *Reconciler) newEntry(expr, command, name string) Entry {
	if r.user != "" {
		return NewSystemEntry(expr, r.user, command, r.tag, name)
	}
	return NewEntry(expr, command, r.tag, name)
}

// store renders entries and replaces the table. This is the point where a
// concurrent outside edit made since load would be overwritten.
func (r *Reconciler) store(ctx context.Context, entries []Entry) error {
	if err := r.table.Write(ctx, RenderEntries(entries)); err != nil {
		r.logger.Error("schedule table write failed", err,
			logger.Field{Key: "diagnostic", Value: Diagnostic(err)})
		return err
	}
	if r.recorder != nil {
		r.recorder.SetScheduled(len(Owned(entries)))
	}
	return nil
}

func (r *Reconciler) record(op string, err error, start time.Time) {
	if r.recorder == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.recorder.RecordReconcile(op, result, time.Since(start))
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if strings.IndexFunc(name, isSpaceOrHash) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace or '#'", ErrInvalidName, name)
	}
	return nil
}

func isSpaceOrHash(r rune) bool {
	return r == '#' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
