package core

import (
	"github.com/dustin/go-broadcast"
	"github.com/encodeous/strand/state"
)

// Events fans out node events to every registered listener. Listeners must keep draining their
// channel, a stalled listener stalls the others.
type Events struct {
	broadcast.Broadcaster
	closed bool
}

func (e *Events) Init(s *state.State) error {
	e.Broadcaster = broadcast.NewBroadcaster(state.EventBufferLen)
	return nil
}

func (e *Events) Cleanup(s *state.State) error {
	e.closed = true
	return e.Broadcaster.Close()
}

func (e *Events) emit(ev any) {
	if e.closed {
		return
	}
	e.TrySubmit(ev)
}

// AdmittedEvent is emitted when Node accepts a link to Neighbour
type AdmittedEvent struct {
	Node      state.NodeId
	Neighbour state.NodeId
	Latency   float64
}

type RejectedEvent struct {
	Node      state.NodeId
	Neighbour state.NodeId
	Outcome   Outcome
}

// AcceptedEvent is emitted when Neighbour acknowledged the link
type AcceptedEvent struct {
	Node      state.NodeId
	Neighbour state.NodeId
}

type DisconnectedEvent struct {
	Node      state.NodeId
	Neighbour state.NodeId
}

type NextHopEvent struct {
	Node    state.NodeId
	NextHop state.NodeId
}

type RoutesEvent struct {
	Gateway state.NodeId
	Routes  state.RouteTable
}

// DeliveredEvent is emitted by the gateway for every application message it receives
type DeliveredEvent struct {
	Gateway state.NodeId
	Sender  state.NodeId
	Body    string
	Path    []state.NodeId
}

// ResetEvent is emitted after a local reset, Neighbours is the number of links left afterwards
type ResetEvent struct {
	Node       state.NodeId
	Neighbours int
}
