// Package snapshot persists the gateway's global topology as JSON,
// {"<node>": [["<neighbour>", <latency>], ...]}.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/encodeous/strand/state"
)

// File is a state.TopologyStore backed by a single JSON file that is overwritten on every save
type File struct {
	mu   sync.Mutex
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

// Load returns an empty topology if the snapshot does not exist yet
func (f *File) Load() (state.GlobalTopology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(state.GlobalTopology), nil
		}
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	topo := make(state.GlobalTopology)
	if len(data) == 0 {
		return topo, nil
	}
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", f.Path, err)
	}
	return topo, nil
}

func (f *File) Save(topo state.GlobalTopology) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if topo == nil {
		topo = make(state.GlobalTopology)
	}
	data, err := json.MarshalIndent(topo, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("snapshot: ensure dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// Memory keeps the snapshot in memory, used by simulations and tests
type Memory struct {
	mu    sync.Mutex
	topo  state.GlobalTopology
	Saves int
}

func (m *Memory) Load() (state.GlobalTopology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topo == nil {
		return make(state.GlobalTopology), nil
	}
	return m.topo.Clone(), nil
}

func (m *Memory) Save(topo state.GlobalTopology) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topo = topo.Clone()
	m.Saves++
	return nil
}

func (m *Memory) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}
