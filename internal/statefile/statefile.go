// Package statefile persists the small amount of engine state that
// must survive a restart: the current mode and the latest summary per
// cadence. Writes are atomic so a crash never leaves a torn file.
package statefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/attune-sh/attune/internal/summarize"
)

// State is the persisted snapshot.
type State struct {
	Mode      string             `json:"mode"`
	Hourly    *summarize.Summary `json:"hourly,omitempty"`
	Daily     *summarize.Summary `json:"daily,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// File reads and writes one state file.
type File struct {
	path string
	mu   sync.Mutex
}

// New creates a File under dir.
func New(dir string) *File {
	return &File{path: filepath.Join(dir, "state.json")}
}

// Load reads the persisted state. A missing file is not an error; it
// returns nil state.
func (f *File) Load() (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &st, nil
}

// Save writes the state atomically.
func (f *File) Save(st *State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
