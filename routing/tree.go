package routing

import (
	"fmt"
	"math"

	"github.com/encodeous/strand/state"
)

const eps = 1e-9

// Tree holds shortest distances towards Root. Next[n] is the neighbour n forwards to.
type Tree struct {
	Root state.NodeId
	Dist map[state.NodeId]float64
	Next map[state.NodeId]state.NodeId
	Hops map[state.NodeId]int
}

func newTree(root state.NodeId) *Tree {
	return &Tree{
		Root: root,
		Dist: map[state.NodeId]float64{root: 0},
		Next: make(map[state.NodeId]state.NodeId),
		Hops: map[state.NodeId]int{root: 0},
	}
}

func (t *Tree) Reachable(n state.NodeId) bool {
	_, ok := t.Dist[n]
	return ok
}

// Distance returns the total weight from n to the root, +Inf if n is unreachable
func (t *Tree) Distance(n state.NodeId) float64 {
	if d, ok := t.Dist[n]; ok {
		return d
	}
	return math.Inf(1)
}

func (t *Tree) NextHop(n state.NodeId) (state.NodeId, bool) {
	nh, ok := t.Next[n]
	return nh, ok
}

// Path returns the hops from n to the root, inclusive of both ends
func (t *Tree) Path(n state.NodeId) ([]state.NodeId, error) {
	if !t.Reachable(n) {
		return nil, fmt.Errorf("%s is not reachable from %s", n, t.Root)
	}
	path := []state.NodeId{n}
	cur := n
	for cur != t.Root {
		nh, ok := t.Next[cur]
		if !ok || len(path) > len(t.Dist) {
			return nil, fmt.Errorf("broken path from %s at %s", n, cur)
		}
		path = append(path, nh)
		cur = nh
	}
	return path, nil
}

// better reports whether the candidate label (dist, hops, next) beats the current one.
// Equal weights prefer fewer hops, then the smaller next hop id.
func better(dist float64, hops int, next state.NodeId, curDist float64, curHops int, curNext state.NodeId) bool {
	if dist < curDist-eps {
		return true
	}
	if dist > curDist+eps {
		return false
	}
	if hops != curHops {
		return hops < curHops
	}
	return next < curNext
}

// offer relaxes n through next with the given label
func (t *Tree) offer(n, next state.NodeId, dist float64, hops int) bool {
	if n == t.Root {
		return false
	}
	if curDist, ok := t.Dist[n]; ok && !better(dist, hops, next, curDist, t.Hops[n], t.Next[n]) {
		return false
	}
	t.Dist[n] = dist
	t.Hops[n] = hops
	t.Next[n] = next
	return true
}
