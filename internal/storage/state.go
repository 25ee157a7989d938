package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Craigmuzza/PVPStore-sub000/internal/alerting"
)

// FileStateStore persists alert engine state as a flat JSON file. Writes go
// to a temp file and rename into place so a crash mid-write never corrupts
// the previous snapshot.
type FileStateStore struct {
	path string
}

// NewFileStateStore constructs a file-backed state store at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the persisted state. A missing file is an empty state, not an
// error.
func (s *FileStateStore) Load() (alerting.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return alerting.NewState(), nil
		}
		return alerting.State{}, fmt.Errorf("read state file: %w", err)
	}

	state := alerting.NewState()
	if err := json.Unmarshal(data, &state); err != nil {
		return alerting.State{}, fmt.Errorf("decode state file: %w", err)
	}
	return state, nil
}

// Save atomically replaces the persisted state.
func (s *FileStateStore) Save(state alerting.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

var _ alerting.StateStore = (*FileStateStore)(nil)
