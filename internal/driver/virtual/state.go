// internal/driver/virtual/state.go
package virtual

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// StateFile is the file name used inside the state directory.
const StateFile = "virtual-printer.json"

type persistedState struct {
	TillClosed bool `json:"till-closed"`
}

// stateStore keeps the till state across restarts. A zero path disables
// persistence.
type stateStore struct {
	fs   afero.Fs
	path string
}

// load returns the zero state when the file is missing or unreadable, so a
// corrupt file never blocks the printer.
func (s stateStore) load() persistedState {
	var st persistedState
	if s.path == "" {
		return st
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return persistedState{}
	}
	return st
}

func (s stateStore) save(st persistedState) error {
	if s.path == "" {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
