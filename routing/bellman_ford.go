package routing

import "github.com/encodeous/strand/state"

// BellmanFord uses the directed view: u reporting (v, w) lets u reach the root through v at cost w.
type BellmanFord struct{}

func (BellmanFord) Algorithm() state.Algorithm {
	return state.BellmanFord
}

func (BellmanFord) Solve(g *Graph, root state.NodeId) *Tree {
	t := newTree(root)
	arcs := g.arcs()
	for i := 0; i < len(g.Nodes()); i++ {
		changed := false
		for _, a := range arcs {
			d, ok := t.Dist[a.to]
			if !ok {
				continue
			}
			if t.offer(a.from, a.to, d+a.weight, t.Hops[a.to]+1) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return t
}
