package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pausee/internal/engine"
)

// fileRecord uses the pausedids.json key names, so files written by earlier releases decode.
type fileRecord struct {
	Campaign string `json:"campaign,omitempty"`
	Count    *int   `json:"count"`
}

// FileStore keeps the paused set in a JSON document mapping campaign id to record.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Path() string { return s.path }

// Load treats a missing, empty or null file as an empty set.
func (s *FileStore) Load(_ context.Context) (engine.PausedSet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return engine.PausedSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return engine.PausedSet{}, nil
	}

	var raw map[string]fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptError{Source: s.path, Err: err}
	}
	set := make(engine.PausedSet, len(raw))
	for id, r := range raw {
		if id == "" {
			return nil, &CorruptError{Source: s.path, Err: errors.New("empty campaign id")}
		}
		if r.Count == nil || *r.Count < 0 {
			return nil, &CorruptError{Source: s.path, Err: fmt.Errorf("campaign %s: missing or negative count", id)}
		}
		set[id] = engine.PausedRecord{ID: id, Name: r.Campaign, InstallsAtPause: *r.Count}
	}
	return set, nil
}

// Save replaces the file through a temp file and rename, so readers see either
// the old or the new document, never a partial one.
func (s *FileStore) Save(_ context.Context, set engine.PausedSet) error {
	raw := make(map[string]fileRecord, len(set))
	for id, r := range set {
		count := r.InstallsAtPause
		raw[id] = fileRecord{Campaign: r.Name, Count: &count}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode paused state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
