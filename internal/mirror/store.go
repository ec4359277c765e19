// Package mirror persists the local copy of the schedule: a JSON object
// mapping function name to cron expression. It is informational only; the
// host's cron table is authoritative and the two may drift.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/aatumaykin/pifaas/internal/logger"
)

// Store reads and rewrites the whole mirror document on every call.
type Store struct {
	fs     afero.Fs
	path   string
	logger *logger.Logger

	mu sync.Mutex
}

// NewStore creates a store for the document at path on fsys.
func NewStore(fsys afero.Fs, path string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Store{fs: fsys, path: path, logger: log}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Ensure creates an empty document when none exists.
func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat schedule mirror: %w", err)
	}
	return s.save(map[string]string{})
}

// All returns every mirrored schedule. A missing document is empty.
func (s *Store) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert records expr for name.
func (s *Store) Upsert(name, expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.load()
	if err != nil {
		return err
	}
	schedules[name] = expr
	return s.save(schedules)
}

// Delete removes name and reports whether it was present. The document is
// only rewritten when something changed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := schedules[name]; !ok {
		return false, nil
	}
	delete(schedules, name)
	return true, s.save(schedules)
}

func (s *Store) load() (map[string]string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read schedule mirror: %w", err)
	}

	schedules := map[string]string{}
	if len(data) == 0 {
		return schedules, nil
	}
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("failed to parse schedule mirror: %w", err)
	}
	if schedules == nil {
		schedules = map[string]string{}
	}
	return schedules, nil
}

// save writes the document atomically: temp file, then rename.
func (s *Store) save(schedules map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mirror directory: %w", err)
	}

	data, err := json.MarshalIndent(schedules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schedule mirror: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write schedule mirror: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace schedule mirror: %w", err)
	}

	s.logger.Debug("schedule mirror saved",
		logger.Field{Key: "count", Value: len(schedules)},
		logger.Field{Key: "file", Value: s.path})
	return nil
}
