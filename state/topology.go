package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

type NodeId string

// PeerState is the admission state of a prospective neighbour
type PeerState int

const (
	Announced PeerState = iota
	Probing
	AckPending
	Accepted
	Disconnected
)

func (p PeerState) String() string {
	switch p {
	case Announced:
		return "announced"
	case Probing:
		return "probing"
	case AckPending:
		return "ack-pending"
	case Accepted:
		return "accepted"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("PeerState(%d)", int(p))
	}
}

type Neighbour struct {
	Id      NodeId
	Latency float64 // seconds
	Since   time.Time
}

// Edge is one (neighbour, latency) entry of a topology report
type Edge struct {
	Neighbour NodeId
	Latency   float64
}

// MarshalJSON encodes an edge as a two element array, ["b", 0.012]
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Neighbour, e.Latency})
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("edge must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Neighbour); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Latency)
}

// GlobalTopology maps a node to the links it last reported
type GlobalTopology map[NodeId][]Edge

// Replace sets the links of node, discarding whatever it reported before
func (g GlobalTopology) Replace(node NodeId, edges []Edge) {
	g[node] = slices.Clone(edges)
}

// RemoveNode deletes the node's own report and every link other nodes reported to it
func (g GlobalTopology) RemoveNode(node NodeId) bool {
	_, changed := g[node]
	delete(g, node)
	for n, edges := range g {
		kept := slices.DeleteFunc(slices.Clone(edges), func(e Edge) bool {
			return e.Neighbour == node
		})
		if len(kept) != len(edges) {
			changed = true
			g[n] = kept
		}
	}
	return changed
}

func (g GlobalTopology) Nodes() []NodeId {
	set := make(map[NodeId]struct{})
	for n, edges := range g {
		set[n] = struct{}{}
		for _, e := range edges {
			set[e.Neighbour] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

func (g GlobalTopology) Clone() GlobalTopology {
	c := make(GlobalTopology, len(g))
	for n, edges := range g {
		c[n] = slices.Clone(edges)
	}
	return c
}

// RouteTable maps a node to the neighbour it must forward to in order to reach the gateway
type RouteTable map[NodeId]NodeId

// LatencyMap is a symmetric latency map, latency[a][b] == latency[b][a]
type LatencyMap map[NodeId]map[NodeId]float64

func (l LatencyMap) Set(a, b NodeId, latency float64) {
	l.half(a)[b] = latency
	l.half(b)[a] = latency
}

func (l LatencyMap) Get(a, b NodeId) (float64, bool) {
	lat, ok := l[a][b]
	return lat, ok
}

func (l LatencyMap) Delete(a, b NodeId) {
	delete(l[a], b)
	delete(l[b], a)
	if len(l[a]) == 0 {
		delete(l, a)
	}
	if len(l[b]) == 0 {
		delete(l, b)
	}
}

func (l LatencyMap) half(a NodeId) map[NodeId]float64 {
	m, ok := l[a]
	if !ok {
		m = make(map[NodeId]float64)
		l[a] = m
	}
	return m
}
