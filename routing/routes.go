package routing

import (
	"fmt"

	"github.com/encodeous/strand/state"
)

// Solver computes shortest paths towards a root
type Solver interface {
	Algorithm() state.Algorithm
	Solve(g *Graph, root state.NodeId) *Tree
}

func SolverFor(alg state.Algorithm) (Solver, error) {
	switch alg {
	case state.Dijkstra, "":
		return Dijkstra{}, nil
	case state.BellmanFord:
		return BellmanFord{}, nil
	default:
		return nil, fmt.Errorf("unknown routing algorithm %q", alg)
	}
}

// ComputeRoutes derives the route table of every node that can reach the gateway. The gateway itself
// and unreachable nodes get no entry.
func ComputeRoutes(topo state.GlobalTopology, gateway state.NodeId, solver Solver) (state.RouteTable, *Tree) {
	tree := solver.Solve(NewGraph(topo), gateway)
	routes := make(state.RouteTable)
	for n, nh := range tree.Next {
		if n == gateway {
			continue
		}
		routes[n] = nh
	}
	return routes, tree
}
