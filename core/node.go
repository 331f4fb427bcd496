package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"go.uber.org/multierr"
)

var (
	ErrNotGateway = errors.New("only the gateway holds the global topology")
	ErrStopped    = errors.New("node stopped")
)

type Options struct {
	// Bus is owned by the node and closed when it stops
	Bus bus.Bus
	// Store defaults to a snapshot file at SnapshotPath on the gateway
	Store    state.TopologyStore
	Clock    clock.Clock
	Logger   *slog.Logger
	LogLevel slog.Level
}

// Node is a handle to a running node. Its methods may be called from any goroutine.
type Node struct {
	s       *state.State
	bus     bus.Bus
	closers []io.Closer

	running atomic.Bool
	once    sync.Once
	done    chan struct{}
	err     error
}

func New(cfg state.LocalCfg, opts Options) (*Node, error) {
	state.ExpandLocalConfig(&cfg)
	if err := state.NodeConfigValidator(&cfg); err != nil {
		return nil, err
	}
	if opts.Bus == nil {
		return nil, errors.New("a bus is required")
	}

	n := &Node{
		bus:  opts.Bus,
		done: make(chan struct{}),
	}
	logger := opts.Logger
	if logger == nil {
		l, closer, err := NewLogger(cfg, opts.LogLevel, os.Stderr)
		if err != nil {
			return nil, err
		}
		logger = l
		n.closers = append(n.closers, closer)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	store := opts.Store
	if store == nil && cfg.Id == cfg.Gateway {
		store = snapshot.NewFile(cfg.SnapshotPath)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	n.s = state.NewState(&state.Env{
		DispatchChannel: make(chan func(*state.State) error, state.DispatchQueueLen),
		LocalCfg:        cfg,
		Context:         ctx,
		Cancel:          cancel,
		Log:             logger,
		Clock:           clk,
		Bus:             opts.Bus,
		Store:           store,
	})

	n.s.Log.Debug("init modules")
	if err := initModules(n.s); err != nil {
		n.s.Cancel(err)
		n.finish()
		return nil, err
	}
	n.s.Log.Info("node initialized", "gateway", cfg.Gateway, "max_degree", cfg.MaxDegree, "algorithm", cfg.Algorithm)
	return n, nil
}

func (n *Node) Id() state.NodeId {
	return n.s.Id
}

func (n *Node) Config() state.LocalCfg {
	return n.s.LocalCfg
}

func (n *Node) Log() *slog.Logger {
	return n.s.Log
}

// Run runs the main loop until the node is stopped. A nil error means the node was stopped on request.
func (n *Node) Run() error {
	if !n.running.CompareAndSwap(false, true) {
		return errors.New("node is already running")
	}
	_ = MainLoop(n.s, n.s.DispatchChannel)
	n.finish()
	return n.err
}

func (n *Node) finish() {
	n.once.Do(func() {
		Stop(n.s)
		err := n.bus.Close()
		for _, c := range n.closers {
			err = multierr.Append(err, c.Close())
		}
		cause := context.Cause(n.s.Context)
		if cause != nil && !errors.Is(cause, ErrStopped) && !errors.Is(cause, context.Canceled) {
			err = multierr.Append(cause, err)
		}
		n.err = err
		close(n.done)
	})
}

// Stop stops the node and waits for it to exit
func (n *Node) Stop() {
	n.s.Cancel(ErrStopped)
	if n.running.Load() {
		<-n.done
		return
	}
	n.finish()
}

// Done is closed once the node has stopped
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) dispatch(fun func(s *state.State) (any, error)) (any, error) {
	if n.s.Context.Err() != nil {
		return nil, ErrStopped
	}
	res, err := n.s.DispatchWait(fun)
	if err != nil && n.s.Context.Err() != nil && errors.Is(err, n.s.Context.Err()) {
		return nil, ErrStopped
	}
	return res, err
}

// Send routes body towards the gateway
func (n *Node) Send(body string) error {
	_, err := n.dispatch(func(s *state.State) (any, error) {
		return nil, Get[*Forwarder](s).Send(s, body)
	})
	return err
}

// Reset tears down every link of this node. A reset issued on the gateway resets the whole network.
func (n *Node) Reset() error {
	_, err := n.dispatch(func(s *state.State) (any, error) {
		Get[*Lifecycle](s).Reset(s)
		return nil, nil
	})
	return err
}

// Leave notifies the neighbours and the gateway, then stops the node
func (n *Node) Leave() error {
	_, err := n.dispatch(func(s *state.State) (any, error) {
		Get[*Lifecycle](s).Leave(s)
		return nil, nil
	})
	n.Stop()
	return err
}

func (n *Node) Inspect() (*Info, error) {
	res, err := n.dispatch(func(s *state.State) (any, error) {
		return inspect(s), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Info), nil
}

// Routes returns the gateway's global topology and route table
func (n *Node) Routes() (state.GlobalTopology, state.RouteTable, error) {
	info, err := n.Inspect()
	if err != nil {
		return nil, nil, err
	}
	if !info.IsGateway() {
		return nil, nil, ErrNotGateway
	}
	return info.Global, info.Routes, nil
}

// Listen registers a channel that receives every event emitted by the node. The channel must be
// drained until the returned function is called or the node stops.
func (n *Node) Listen() (<-chan any, func()) {
	ch := make(chan any, state.EventBufferLen)
	events := Get[*Events](n.s)
	if !safely(func() { events.Register(ch) }) {
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		safely(func() { events.Unregister(ch) })
	}
}

// safely runs fun, reporting false if it panicked on a closed broadcaster
func safely(fun func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	fun()
	return true
}
