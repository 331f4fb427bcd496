package core

import (
	"testing"
	"time"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const converge = 5 * time.Second

// triangle starts G, A and B where the direct G-B link is much slower than going through A
func triangle(t *testing.T) (g, a, b *Node, store *snapshot.Memory) {
	broker := bus.NewBroker(nil)
	broker.SetLatency("G", "A", 5*time.Millisecond)
	broker.SetLatency("A", "B", 5*time.Millisecond)
	broker.SetLatency("G", "B", 40*time.Millisecond)

	store = &snapshot.Memory{}
	g = startNode(t, broker, fastConfig("G", "G"), store)
	a = startNode(t, broker, fastConfig("A", "G"), nil)
	b = startNode(t, broker, fastConfig("B", "G"), nil)
	return
}

func routesOf(t *testing.T, g *Node) state.RouteTable {
	_, routes, err := g.Routes()
	if err != nil {
		return nil
	}
	return routes
}

func TestNetwork_Converges(t *testing.T) {
	g, a, b, store := triangle(t)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(state.RouteTable{"A": "G", "B": "A"}, routesOf(t, g))
	}, converge, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		info, err := b.Inspect()
		return err == nil && info.NextHop == "A"
	}, converge, 20*time.Millisecond)

	info, err := g.Inspect()
	require.NoError(t, err)
	assert.Equal(t, []state.NodeId{"B", "A", "G"}, info.Paths["B"])
	assert.Positive(t, store.SaveCount())

	ainfo, err := a.Inspect()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ainfo.Neighbours), 2)
	assert.Equal(t, state.NodeId("G"), ainfo.NextHop)

	_, _, err = a.Routes()
	assert.ErrorIs(t, err, ErrNotGateway)
}

func TestNetwork_MessageResetsNetwork(t *testing.T) {
	g, a, b, _ := triangle(t)
	gev := collect(t, g)
	aev := collect(t, a)
	bev := collect(t, b)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(state.RouteTable{"A": "G", "B": "A"}, routesOf(t, g))
	}, converge, 20*time.Millisecond)

	require.NoError(t, a.Send("hello"))

	require.Eventually(t, func() bool {
		return len(eventsOf[DeliveredEvent](gev)) == 1
	}, converge, 10*time.Millisecond)
	delivered := eventsOf[DeliveredEvent](gev)[0]
	assert.Equal(t, state.NodeId("A"), delivered.Sender)
	assert.Equal(t, "hello", delivered.Body)
	assert.Empty(t, delivered.Path)

	for _, c := range []*collector{gev, aev, bev} {
		require.Eventually(t, func() bool {
			for _, ev := range eventsOf[ResetEvent](c) {
				if ev.Neighbours == 0 {
					return true
				}
			}
			return false
		}, converge, 10*time.Millisecond)
	}

	// discovery starts over and the network re-forms
	require.Eventually(t, func() bool {
		return len(routesOf(t, g)) == 2
	}, converge, 20*time.Millisecond)

	info, err := g.Inspect()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.Resets, 1)
}

func TestNetwork_RelayedMessage(t *testing.T) {
	g, _, b, _ := triangle(t)
	gev := collect(t, g)

	require.Eventually(t, func() bool {
		info, err := b.Inspect()
		return err == nil && info.NextHop == "A"
	}, converge, 20*time.Millisecond)

	// a direct link to the gateway always wins, drop it so the message takes the computed route
	_, err := b.dispatch(func(s *state.State) (any, error) {
		if Get[*Lifecycle](s).drop(s, "G") {
			publish(s, protocol.Disconnect{To: "G", Sender: s.Id})
		}
		return nil, nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Send("relayed"))
	require.Eventually(t, func() bool {
		for _, ev := range eventsOf[DeliveredEvent](gev) {
			if ev.Body == "relayed" && ev.Sender == "B" {
				return true
			}
		}
		return false
	}, converge, 10*time.Millisecond)
}

func TestNetwork_IsolatedNodeHasNoRoute(t *testing.T) {
	broker := bus.NewBroker(nil)
	x := startNode(t, broker, fastConfig("X", "G"), nil)
	assert.ErrorIs(t, x.Send("hello"), ErrNoRoute)
}

func TestNetwork_Leave(t *testing.T) {
	broker := bus.NewBroker(nil)
	g := startNode(t, broker, fastConfig("G", "G"), &snapshot.Memory{})
	a := startNode(t, broker, fastConfig("A", "G"), nil)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(state.RouteTable{"A": "G"}, routesOf(t, g))
	}, converge, 20*time.Millisecond)

	require.NoError(t, a.Leave())
	<-a.Done()

	require.Eventually(t, func() bool {
		global, routes, err := g.Routes()
		return err == nil && len(routes) == 0 && len(global) == 0
	}, converge, 20*time.Millisecond)

	assert.ErrorIs(t, a.Send("late"), ErrStopped)
}

func TestNode_StopReleasesGoroutines(t *testing.T) {
	opt := goleak.IgnoreCurrent()

	broker := bus.NewBroker(nil)
	g, err := New(fastConfig("G", "G"), Options{Bus: broker.Client("G"), Store: &snapshot.Memory{}, Logger: discardLogger()})
	require.NoError(t, err)
	a, err := New(fastConfig("A", "G"), Options{Bus: broker.Client("A"), Logger: discardLogger()})
	require.NoError(t, err)

	errs := make(chan error, 2)
	go func() { errs <- g.Run() }()
	go func() { errs <- a.Run() }()

	require.Eventually(t, func() bool {
		return len(routesOf(t, g)) == 1
	}, converge, 20*time.Millisecond)

	a.Stop()
	g.Stop()
	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)

	g.Stop()
	_, err = g.Inspect()
	assert.ErrorIs(t, err, ErrStopped)

	goleak.VerifyNone(t, opt)
}

func TestNode_RejectsInvalidConfig(t *testing.T) {
	_, err := New(state.LocalCfg{Id: "A", Gateway: "G", Bus: state.BusCfg{Kind: state.BusMemory}}, Options{})
	assert.Error(t, err)

	_, err = New(state.LocalCfg{Gateway: "G", Bus: state.BusCfg{Kind: state.BusMemory}}, Options{Bus: &recordingBus{}})
	assert.Error(t, err)
}
