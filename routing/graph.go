package routing

import (
	"maps"
	"slices"

	"github.com/encodeous/strand/state"
)

// Graph is the weighted graph built from a GlobalTopology. Every reported (neighbour, latency) pair is
// an edge, the directed view keeps who reported it and the undirected view keeps the smaller latency
// when both endpoints reported the link.
type Graph struct {
	nodes      []state.NodeId
	undirected map[state.NodeId]map[state.NodeId]float64
	directed   map[state.NodeId]map[state.NodeId]float64
}

func NewGraph(topo state.GlobalTopology) *Graph {
	g := &Graph{
		undirected: make(map[state.NodeId]map[state.NodeId]float64),
		directed:   make(map[state.NodeId]map[state.NodeId]float64),
	}
	for from, edges := range topo {
		for _, e := range edges {
			if e.Neighbour == from {
				continue
			}
			setMin(g.directed, from, e.Neighbour, e.Latency)
			setMin(g.undirected, from, e.Neighbour, e.Latency)
			setMin(g.undirected, e.Neighbour, from, e.Latency)
		}
	}
	g.nodes = topo.Nodes()
	return g
}

func setMin(adj map[state.NodeId]map[state.NodeId]float64, a, b state.NodeId, w float64) {
	m, ok := adj[a]
	if !ok {
		m = make(map[state.NodeId]float64)
		adj[a] = m
	}
	if cur, ok := m[b]; !ok || w < cur {
		m[b] = w
	}
}

func (g *Graph) Nodes() []state.NodeId {
	return g.nodes
}

func (g *Graph) HasNode(n state.NodeId) bool {
	_, ok := slices.BinarySearch(g.nodes, n)
	return ok
}

// Neighbours returns the undirected neighbours of n sorted by id
func (g *Graph) Neighbours(n state.NodeId) []state.NodeId {
	return slices.Sorted(maps.Keys(g.undirected[n]))
}

// Weight returns the undirected weight of the link between a and b
func (g *Graph) Weight(a, b state.NodeId) (float64, bool) {
	w, ok := g.undirected[a][b]
	return w, ok
}

// Reported returns the latency a reported for its link to b
func (g *Graph) Reported(a, b state.NodeId) (float64, bool) {
	w, ok := g.directed[a][b]
	return w, ok
}

// arcs returns every directed edge sorted by (from, to)
func (g *Graph) arcs() []arc {
	res := make([]arc, 0)
	for _, from := range slices.Sorted(maps.Keys(g.directed)) {
		for _, to := range slices.Sorted(maps.Keys(g.directed[from])) {
			res = append(res, arc{from, to, g.directed[from][to]})
		}
	}
	return res
}

type arc struct {
	from, to state.NodeId
	weight   float64
}
