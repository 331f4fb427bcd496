package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	broker := bus.NewBroker(nil)
	g := startNode(t, broker, fastConfig("G", "G"), &snapshot.Memory{})
	events := collect(t, g)

	out, err := Execute(g, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "gateway G")

	out, err = Execute(g, "send hello world")
	require.NoError(t, err)
	assert.Equal(t, "message delivered locally\n", out)
	require.Eventually(t, func() bool {
		d := eventsOf[DeliveredEvent](events)
		return len(d) == 1 && d[0].Body == "hello world"
	}, time.Second, 10*time.Millisecond)

	_, err = Execute(g, "send")
	assert.Error(t, err)
	_, err = Execute(g, "fly")
	assert.Error(t, err)
	_, err = Execute(g, "exit")
	assert.ErrorIs(t, err, ErrExit)

	out, err = Execute(g, "reset")
	require.NoError(t, err)
	assert.Equal(t, "connections reset\n", out)
}

func TestIPC(t *testing.T) {
	// unix socket paths are length limited, t.TempDir can be too long
	dir, err := os.MkdirTemp("", "strand")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "a.sock")

	broker := bus.NewBroker(nil)
	a := startNode(t, broker, fastConfig("A", "G"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- ServeIPC(ctx, a, path, discardLogger()) }()

	var out string
	require.Eventually(t, func() bool {
		out, err = IPCGet(path, "show")
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out, "node A")
	assert.Contains(t, out, "Next hop: (unknown)")

	out, err = IPCGet(path, "send hi")
	require.NoError(t, err)
	assert.Contains(t, out, ErrNoRoute.Error())

	out, err = IPCGet(path, "exit")
	require.NoError(t, err)
	assert.Equal(t, "exit only closes the interactive shell, use leave to stop the node\n", out)
	_, err = a.Inspect()
	assert.NoError(t, err)

	cancel()
	assert.NoError(t, <-served)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
