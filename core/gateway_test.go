package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(from state.NodeId, links ...state.Edge) protocol.TopologyReport {
	return protocol.TopologyReport{To: "G", Sender: from, Links: links}
}

func TestGateway_ReportReplacesEntry(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	g.handle(t, report("A", state.Edge{Neighbour: "B", Latency: 1}, state.Edge{Neighbour: "G", Latency: 2}))
	g.handle(t, report("A", state.Edge{Neighbour: "G", Latency: 3}))

	assert.Equal(t, []state.Edge{{Neighbour: "G", Latency: 3}}, g.Global["A"])
	lat, ok := g.Latency.Get("G", "A")
	require.True(t, ok)
	assert.Equal(t, 3.0, lat)

	saved, err := g.store.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(g.Global, saved); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, g.store.SaveCount())
}

func TestGateway_ReportSkipsMalformedFields(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	msg, err := protocol.Decode("connections/G", []byte("X:A:5.0,B"))
	require.NoError(t, err)
	g.handle(t, msg)
	assert.Equal(t, []state.Edge{{Neighbour: "A", Latency: 5.0}}, g.Global["X"])
}

func TestGateway_DistributesNextHops(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	g.handle(t, report("A", state.Edge{Neighbour: "G", Latency: 0.010}, state.Edge{Neighbour: "B", Latency: 0.010}))
	g.bus.take()
	g.handle(t, report("B", state.Edge{Neighbour: "G", Latency: 0.050}, state.Edge{Neighbour: "A", Latency: 0.010}))

	hops := ofKind[protocol.NextHopUpdate](g.bus.take())
	assert.ElementsMatch(t, []protocol.NextHopUpdate{{To: "A", NextHop: "G"}, {To: "B", NextHop: "A"}}, hops)
	assert.Equal(t, state.RouteTable{"A": "G", "B": "A"}, g.Routes)
}

func TestGateway_BellmanFordUsesReportedDirection(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G", Algorithm: state.BellmanFord})
	// A reported its link to B, but nobody reported a link towards G
	g.handle(t, report("A", state.Edge{Neighbour: "B", Latency: 1}))
	assert.Empty(t, g.Routes)

	g.handle(t, report("B", state.Edge{Neighbour: "G", Latency: 1}))
	assert.Equal(t, state.RouteTable{"A": "B", "B": "G"}, g.Routes)
}

func TestGateway_OwnLinksFoldedIn(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	require.Equal(t, Admitted, g.link(t, "A", 4*time.Millisecond))

	require.Len(t, g.Global["G"], 1)
	assert.Equal(t, state.NodeId("A"), g.Global["G"][0].Neighbour)
	assert.Equal(t, state.RouteTable{"A": "G"}, g.Routes)

	g.handle(t, protocol.Disconnect{To: "G", Sender: "A"})
	assert.NotContains(t, g.Global, state.NodeId("G"))
	assert.Empty(t, g.Routes)
}

func TestGateway_Departure(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	g.handle(t, report("A", state.Edge{Neighbour: "G", Latency: 1}, state.Edge{Neighbour: "B", Latency: 1}))
	g.handle(t, report("B", state.Edge{Neighbour: "A", Latency: 1}))
	require.Equal(t, state.NodeId("A"), g.Routes["B"])

	g.handle(t, protocol.DisconnectAll{Sender: "A"})
	assert.Equal(t, state.GlobalTopology{"B": {}}, g.Global)
	assert.Empty(t, g.Routes)

	saved, err := g.store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved["B"])
	assert.NotContains(t, saved, state.NodeId("A"))
}

func TestGateway_MessageTriggersReset(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	require.Equal(t, Admitted, g.link(t, "A", time.Millisecond))
	g.handle(t, report("A", state.Edge{Neighbour: "G", Latency: 0.001}))
	g.bus.take()

	ch := make(chan any, 16)
	Get[*Events](g.State).Register(ch)

	g.handle(t, protocol.Application{To: "G", Sender: "A", Body: "hello"})

	sent := g.bus.take()
	assert.Equal(t, []protocol.Disconnect{{To: "A", Sender: "G"}}, ofKind[protocol.Disconnect](sent))
	assert.Len(t, ofKind[protocol.DisconnectAll](sent), 1)
	assert.Len(t, ofKind[protocol.GlobalReset](sent), 1)
	assert.Len(t, ofKind[protocol.Announce](sent), 1)

	assert.Empty(t, g.Neighbours)
	assert.Empty(t, g.Global)
	assert.Empty(t, g.Routes)
	assert.Equal(t, 2, g.Slots.Get("G"))
	assert.Equal(t, 1, g.Resets)
	saved, err := g.store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)

	delivered := waitEvent[DeliveredEvent](t, ch)
	assert.Equal(t, DeliveredEvent{Gateway: "G", Sender: "A", Body: "hello"}, delivered)
}

func TestGateway_NoResetOnMessage(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G", NoResetOnMessage: true})
	require.Equal(t, Admitted, g.link(t, "A", time.Millisecond))
	g.bus.take()

	g.handle(t, protocol.Application{To: "G", Sender: "A", Body: "hello"})
	assert.Empty(t, g.bus.take())
	assert.Len(t, g.Neighbours, 1)
}

func TestGateway_MessageLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "received_messages.log")
	g := newTestState(t, state.LocalCfg{Id: "G", NoResetOnMessage: true, MessageLog: path})
	g.handle(t, protocol.Application{To: "G", Sender: "A", Body: "one"})
	g.handle(t, protocol.Application{To: "G", Sender: "B", Body: "two: three"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], ": A: one"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ": B: two: three"), lines[1])
	assert.True(t, strings.HasPrefix(lines[0], g.clock.Now().Format(time.ANSIC)), lines[0])
}

func TestGateway_IgnoresOwnResetAndDeparture(t *testing.T) {
	g := newTestState(t, state.LocalCfg{Id: "G"})
	require.Equal(t, Admitted, g.link(t, "A", time.Millisecond))
	g.handle(t, protocol.GlobalReset{})
	g.handle(t, protocol.DisconnectAll{Sender: "G"})
	assert.Len(t, g.Neighbours, 1)
}

func TestGateway_RestoreSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections_list.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"A": [["G", 0.01]], "G": [["A", 0.01]]}`), 0o644))

	node, err := New(state.LocalCfg{
		Id:              "G",
		Gateway:         "G",
		Bus:             state.BusCfg{Kind: state.BusMemory},
		SnapshotPath:    path,
		RestoreSnapshot: true,
	}, Options{Bus: &recordingBus{}, Logger: discardLogger()})
	require.NoError(t, err)
	go func() { _ = node.Run() }()
	defer node.Stop()

	global, routes, err := node.Routes()
	require.NoError(t, err)
	assert.Equal(t, state.GlobalTopology{"A": {{Neighbour: "G", Latency: 0.01}}}, global)
	assert.Equal(t, state.RouteTable{"A": "G"}, routes)
}

func waitEvent[T any](t *testing.T, ch <-chan any) T {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if e, ok := ev.(T); ok {
				return e
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}
