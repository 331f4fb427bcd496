package routing

import (
	"container/heap"

	"github.com/encodeous/strand/state"
)

// Dijkstra treats every reported link as bidirectional
type Dijkstra struct{}

func (Dijkstra) Algorithm() state.Algorithm {
	return state.Dijkstra
}

func (Dijkstra) Solve(g *Graph, root state.NodeId) *Tree {
	t := newTree(root)
	visited := make(map[state.NodeId]bool)

	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &item{node: root})

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*item)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		for _, neigh := range g.Neighbours(cur.node) {
			if visited[neigh] {
				continue
			}
			w, _ := g.Weight(cur.node, neigh)
			if t.offer(neigh, cur.node, t.Dist[cur.node]+w, t.Hops[cur.node]+1) {
				heap.Push(&pq, &item{node: neigh, dist: t.Dist[neigh], hops: t.Hops[neigh]})
			}
		}
	}
	return t
}

type item struct {
	node  state.NodeId
	dist  float64
	hops  int
	index int
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	return a.node < b.node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}
