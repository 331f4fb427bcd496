package core

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"github.com/stretchr/testify/require"
)

// recordingBus captures everything a node publishes
type recordingBus struct {
	mu   sync.Mutex
	sent []protocol.Msg
}

func (r *recordingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg, err := protocol.Decode(topic, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingBus) Subscribe(ctx context.Context, topic string, h bus.Handler) error {
	return nil
}

func (r *recordingBus) Unsubscribe(ctx context.Context, topics ...string) error {
	return nil
}

func (r *recordingBus) Close() error {
	return nil
}

// take returns and forgets every message published so far
func (r *recordingBus) take() []protocol.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.sent
	r.sent = nil
	return res
}

func ofKind[T protocol.Msg](msgs []protocol.Msg) []T {
	res := make([]T, 0)
	for _, m := range msgs {
		if t, ok := m.(T); ok {
			res = append(res, t)
		}
	}
	return res
}

type testNode struct {
	*state.State
	bus   *recordingBus
	clock *clock.Mock
	store *snapshot.Memory
}

// newTestState initializes every module on a state whose main loop never runs. Handlers are invoked
// directly, periodic tasks only fill the dispatch queue.
func newTestState(t *testing.T, cfg state.LocalCfg) *testNode {
	t.Helper()
	if cfg.Gateway == "" {
		cfg.Gateway = "G"
	}
	if cfg.Bus.Kind == "" {
		cfg.Bus.Kind = state.BusMemory
	}
	state.ExpandLocalConfig(&cfg)
	require.NoError(t, state.NodeConfigValidator(&cfg))

	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })

	tn := &testNode{
		bus:   &recordingBus{},
		clock: clock.NewMock(),
		store: &snapshot.Memory{},
	}
	tn.clock.Set(time.Unix(1_700_000_000, 0))
	tn.State = state.NewState(&state.Env{
		DispatchChannel: make(chan func(*state.State) error, state.DispatchQueueLen),
		LocalCfg:        cfg,
		Context:         ctx,
		Cancel:          cancel,
		Log:             discardLogger(),
		Clock:           tn.clock,
		Bus:             tn.bus,
		Store:           tn.store,
	})
	require.NoError(t, initModules(tn.State))
	tn.bus.take()
	return tn
}

func (tn *testNode) handle(t *testing.T, msg protocol.Msg) {
	t.Helper()
	require.NoError(t, handle(tn.State, msg))
}

// link admits neighbour through a full announce, probe and echo exchange
func (tn *testNode) link(t *testing.T, neighbour state.NodeId, latency time.Duration) Outcome {
	t.Helper()
	tn.handle(t, protocol.Announce{Sender: neighbour})
	probes := ofKind[protocol.Probe](tn.bus.take())
	require.Len(t, probes, 1)
	tn.clock.Add(latency)
	before := len(tn.Neighbours)
	tn.handle(t, protocol.Echo{To: tn.Id, Sender: neighbour, Timestamp: probes[0].Timestamp})
	if len(tn.Neighbours) > before {
		return Admitted
	}
	return Get[*Admission](tn.State).Check(tn.State, neighbour)
}

// collector drains the events of a node
type collector struct {
	mu     sync.Mutex
	events []any
}

func collect(t *testing.T, n *Node) *collector {
	c := &collector{}
	ch, unregister := n.Listen()
	go func() {
		for {
			select {
			case ev := <-ch:
				c.mu.Lock()
				c.events = append(c.events, ev)
				c.mu.Unlock()
			case <-n.Done():
				// keep draining in case the broadcaster is mid send
				for {
					select {
					case <-ch:
					case <-time.After(50 * time.Millisecond):
						return
					}
				}
			}
		}
	}()
	t.Cleanup(unregister)
	return c
}

func eventsOf[T any](c *collector) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]T, 0)
	for _, ev := range c.events {
		if t, ok := ev.(T); ok {
			res = append(res, t)
		}
	}
	return res
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fastConfig shortens every interval so a simulated network converges within a second
func fastConfig(id, gateway state.NodeId) state.LocalCfg {
	return state.LocalCfg{
		Id:               id,
		Gateway:          gateway,
		MaxDegree:        2,
		Bus:              state.BusCfg{Kind: state.BusMemory},
		AnnounceInterval: 50 * time.Millisecond,
		SettleDelay:      100 * time.Millisecond,
		ReportInterval:   100 * time.Millisecond,
		ProbeTimeout:     time.Second,
	}
}

// startNode runs a node on the broker until the test ends
func startNode(t *testing.T, broker *bus.Broker, cfg state.LocalCfg, store state.TopologyStore) *Node {
	t.Helper()
	n, err := New(cfg, Options{
		Bus:    broker.Client(cfg.Id),
		Store:  store,
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	go func() {
		_ = n.Run()
	}()
	t.Cleanup(n.Stop)
	return n
}
