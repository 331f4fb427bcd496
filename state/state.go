package state

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// Publisher is the outbound half of the message bus
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// TopologyStore persists the gateway's global topology. Save overwrites the previous snapshot.
type TopologyStore interface {
	Load() (GlobalTopology, error)
	Save(topo GlobalTopology) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Modules map[string]NyModule

	// Neighbours contains every accepted link of this node
	Neighbours map[NodeId]*Neighbour
	// Peers tracks the admission state of every node we have heard from
	Peers   map[NodeId]PeerState
	Slots   *ConnectionSlots
	Latency LatencyMap
	// Cache holds topologies that neighbours sent us in reply to a connections request
	Cache GlobalTopology

	// Global and Routes are only populated on the gateway
	Global GlobalTopology
	Routes RouteTable

	// NextHop is the last next hop received from the gateway
	NextHop NodeId
	Resets  int
}

func NewState(env *Env) *State {
	s := &State{
		Env:     env,
		Modules: make(map[string]NyModule),
	}
	s.Clear()
	return s
}

// Clear drops all links and learned topology. Module registrations are kept.
func (s *State) Clear() {
	s.Neighbours = make(map[NodeId]*Neighbour)
	s.Peers = make(map[NodeId]PeerState)
	s.Slots = NewConnectionSlots(s.MaxDegree)
	s.Latency = make(LatencyMap)
	s.Cache = make(GlobalTopology)
	s.Global = make(GlobalTopology)
	s.Routes = make(RouteTable)
	s.NextHop = ""
}

func (s *State) GetNeighbour(node NodeId) *Neighbour {
	return s.Neighbours[node]
}

func (s *State) IsGateway() bool {
	return s.Id == s.Gateway
}

// NeighbourIds returns the accepted neighbours sorted by id
func (s *State) NeighbourIds() []NodeId {
	return slices.Sorted(maps.Keys(s.Neighbours))
}

// LocalTopology returns this node's accepted links as (neighbour, latency) pairs
func (s *State) LocalTopology() []Edge {
	edges := make([]Edge, 0, len(s.Neighbours))
	for _, id := range s.NeighbourIds() {
		edges = append(edges, Edge{Neighbour: id, Latency: s.Neighbours[id].Latency})
	}
	return edges
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan func(s *State) error
	LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	Clock   clock.Clock
	Bus     Publisher
	Store   TopologyStore

	Started  atomic.Bool
	Stopping atomic.Bool
}

// Now returns the current time as fractional unix seconds, the unit used on the wire
func (e *Env) Now() float64 {
	return UnixSeconds(e.Clock.Now())
}

func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
