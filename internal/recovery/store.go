// Package recovery persists session snapshots so a crash never loses a
// user's narration. Snapshots are eventually consistent copies; the state
// machine owns the authoritative session.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bugbrief/internal/domain"
)

// Store keeps one JSON snapshot file per session id.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save durably writes the snapshot, replacing any previous one for the
// same session.
func (s *Store) Save(snap domain.Snapshot) error {
	if snap.Session.ID == "" {
		return errors.New("snapshot has no session id")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	return writeJSONAtomic(s.path(snap.Session.ID), snap)
}

// Load returns the most recently saved snapshot, or nil when there is
// nothing to recover. Unreadable snapshots are skipped: a corrupt file is
// "no recoverable session found", never a blocking error.
func (s *Store) Load() (*domain.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var newest *domain.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := s.read(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		if newest == nil || snap.LastSaveTime.After(newest.LastSaveTime) {
			newest = snap
		}
	}
	return newest, nil
}

// LoadByID returns the snapshot for one session, nil when absent, or a
// RecoveryError when the file exists but cannot be decoded.
func (s *Store) LoadByID(id string) (*domain.Snapshot, error) {
	snap, err := s.read(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.RecoveryError{Err: err}
	}
	return snap, nil
}

// Discard removes the snapshot for a session. Missing files are fine.
func (s *Store) Discard(id string) error {
	if id == "" {
		return nil
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(path string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Session.ID == "" {
		return nil, errors.New("snapshot carries no session id")
	}
	return &snap, nil
}

// writeJSONAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated snapshot behind.
func writeJSONAtomic(path string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(payload); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
