package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/strand/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "connections_list.json")
	f := NewFile(path)

	topo := state.GlobalTopology{
		"G": {{Neighbour: "A", Latency: 0.012}, {Neighbour: "B", Latency: 0.5}},
		"A": {{Neighbour: "G", Latency: 0.012}},
		"B": {},
	}
	require.NoError(t, f.Save(topo))

	loaded, err := f.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(topo, loaded); diff != "" {
		t.Errorf("topology mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections_list.json")
	f := NewFile(path)
	require.NoError(t, f.Save(state.GlobalTopology{"A": {{Neighbour: "B", Latency: 1.5}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A": [["B", 1.5]]}`, string(data))
}

func TestFile_Overwrite(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "snap.json"))
	require.NoError(t, f.Save(state.GlobalTopology{"A": {{Neighbour: "B", Latency: 1}}}))
	require.NoError(t, f.Save(state.GlobalTopology{}))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFile_LoadMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	loaded, err := f.Load()
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestFile_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"A": [["B"]]}`), 0o644))
	_, err := NewFile(path).Load()
	assert.Error(t, err)
}

func TestMemory_SaveClones(t *testing.T) {
	m := &Memory{}
	topo := state.GlobalTopology{"A": {{Neighbour: "B", Latency: 1}}}
	require.NoError(t, m.Save(topo))
	topo["A"][0].Latency = 5

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 1.0, loaded["A"][0].Latency)
	assert.Equal(t, 1, m.SaveCount())
}
