package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aatumaykin/pifaas/internal/crontab"
)

// SetSchedule installs expr for an existing function, the same way the HTTP
// API does.
func (a *App) SetSchedule(ctx context.Context, name, expr string) error {
	command, err := a.Command(name)
	if err != nil {
		return err
	}
	return a.reconciler.Upsert(ctx, name, expr, command)
}

// RemoveSchedule drops every line for name.
func (a *App) RemoveSchedule(ctx context.Context, name string) error {
	return a.reconciler.Remove(ctx, name)
}

// ScheduleInfo is one mirrored schedule with its next activation.
type ScheduleInfo struct {
	Function   string     `json:"function" yaml:"function"`
	Expression string     `json:"expression" yaml:"expression"`
	NextRun    *time.Time `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	ParseError string     `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
}

// Schedules lists the mirror sorted by function name. NextRun is left empty
// for expressions only the host cron understands.
func (a *App) Schedules(now time.Time) ([]ScheduleInfo, error) {
	all, err := a.mirror.All()
	if err != nil {
		return nil, err
	}

	list := make([]ScheduleInfo, 0, len(all))
	for name, expr := range all {
		info := ScheduleInfo{Function: name, Expression: expr}
		if next, err := crontab.NextRun(expr, now); err != nil {
			info.ParseError = err.Error()
		} else {
			info.NextRun = &next
		}
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Function < list[j].Function })
	return list, nil
}

// DriftKind classifies a difference between mirror and table.
type DriftKind string

const (
	DriftMissingInTable  DriftKind = "missing_in_table"
	DriftMissingInMirror DriftKind = "missing_in_mirror"
	DriftExpression      DriftKind = "expression_mismatch"
)

// Drift is one function whose mirror record and table line disagree.
type Drift struct {
	Function string    `json:"function" yaml:"function"`
	Kind     DriftKind `json:"kind" yaml:"kind"`
	Mirror   string    `json:"mirror,omitempty" yaml:"mirror,omitempty"`
	Table    string    `json:"table,omitempty" yaml:"table,omitempty"`
}

// Drift compares the mirror with the tagged lines of the table. It only
// reports; neither side is changed.
func (a *App) Drift(ctx context.Context) ([]Drift, error) {
	mirrored, err := a.mirror.All()
	if err != nil {
		return nil, err
	}
	owned, err := a.reconciler.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var drift []Drift
	for name, expr := range mirrored {
		entry, ok := owned[name]
		switch {
		case !ok:
			drift = append(drift, Drift{Function: name, Kind: DriftMissingInTable, Mirror: expr})
		case !strings.HasPrefix(strings.TrimSpace(entry.Raw), expr+" "):
			drift = append(drift, Drift{Function: name, Kind: DriftExpression, Mirror: expr, Table: entry.Schedule})
		}
	}
	for name, entry := range owned {
		if _, ok := mirrored[name]; !ok {
			drift = append(drift, Drift{Function: name, Kind: DriftMissingInMirror, Table: entry.Schedule})
		}
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].Function < drift[j].Function })
	return drift, nil
}
