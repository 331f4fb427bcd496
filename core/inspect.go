package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
)

type NeighbourInfo struct {
	Id      state.NodeId
	Latency float64
	State   state.PeerState
	Since   time.Time
}

// Info is a point in time copy of a node's state
type Info struct {
	Id        state.NodeId
	Gateway   state.NodeId
	Algorithm state.Algorithm
	MaxDegree int

	Neighbours []NeighbourInfo
	Peers      map[state.NodeId]state.PeerState
	Slots      map[state.NodeId]int
	Latency    state.LatencyMap
	NextHop    state.NodeId
	Cache      state.GlobalTopology
	Resets     int

	// gateway only
	Global state.GlobalTopology
	Routes state.RouteTable
	Paths  map[state.NodeId][]state.NodeId
}

func (i *Info) IsGateway() bool {
	return i.Id == i.Gateway
}

func inspect(s *state.State) *Info {
	info := &Info{
		Id:        s.Id,
		Gateway:   s.Gateway,
		Algorithm: s.Algorithm,
		MaxDegree: s.MaxDegree,
		Peers:     maps.Clone(s.Peers),
		Slots:     s.Slots.Snapshot(),
		Latency:   make(state.LatencyMap),
		NextHop:   s.NextHop,
		Cache:     s.Cache.Clone(),
		Resets:    s.Resets,
		Global:    s.Global.Clone(),
		Routes:    maps.Clone(s.Routes),
		Paths:     make(map[state.NodeId][]state.NodeId),
	}
	info.Slots[s.Id] = s.Slots.Get(s.Id)
	for _, id := range s.NeighbourIds() {
		n := s.Neighbours[id]
		info.Neighbours = append(info.Neighbours, NeighbourInfo{
			Id:      id,
			Latency: n.Latency,
			State:   s.Peers[id],
			Since:   n.Since,
		})
	}
	for a, m := range s.Latency {
		info.Latency[a] = maps.Clone(m)
	}
	if tree := Get[*Topology](s).Tree; tree != nil {
		for n := range s.Routes {
			if path, err := tree.Path(n); err == nil {
				info.Paths[n] = path
			}
		}
	}
	return info
}

// Render formats the info for humans
func (i *Info) Render() string {
	sb := strings.Builder{}
	role := "node"
	if i.IsGateway() {
		role = "gateway"
	}
	sb.WriteString(fmt.Sprintf("%s %s (gateway %s, max degree %d, resets %d)\n", role, i.Id, i.Gateway, i.MaxDegree, i.Resets))

	sb.WriteString("Neighbours:\n")
	if len(i.Neighbours) == 0 {
		sb.WriteString(" (none)\n")
	}
	for _, n := range i.Neighbours {
		sb.WriteString(fmt.Sprintf(" - %s: %s, %s\n", n.Id, fmtLatency(n.Latency), n.State))
	}

	sb.WriteString("\nPeers:\n")
	rt := make([]string, 0)
	for p, st := range i.Peers {
		rt = append(rt, fmt.Sprintf(" - %s: %s", p, st))
	}
	writeSorted(&sb, rt)

	sb.WriteString("\nSlots:\n")
	rt = rt[:0]
	for n, v := range i.Slots {
		rt = append(rt, fmt.Sprintf(" - %s: %d/%d", n, v, i.MaxDegree))
	}
	writeSorted(&sb, rt)

	sb.WriteString("\nLatencies:\n")
	rt = rt[:0]
	for a, m := range i.Latency {
		for b, l := range m {
			if a < b {
				rt = append(rt, fmt.Sprintf(" - %s <-> %s: %s", a, b, fmtLatency(l)))
			}
		}
	}
	writeSorted(&sb, rt)

	if !i.IsGateway() {
		nh := string(i.NextHop)
		if nh == "" {
			nh = "(unknown)"
		}
		sb.WriteString(fmt.Sprintf("\nNext hop: %s\n", nh))
		if len(i.Cache) > 0 {
			sb.WriteString("\nNeighbour topologies:\n")
			writeTopology(&sb, i.Cache)
		}
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\nGlobal topology (%s):\n", i.Algorithm))
	writeTopology(&sb, i.Global)

	sb.WriteString("\nRoutes:\n")
	rt = rt[:0]
	for n, nh := range i.Routes {
		line := fmt.Sprintf(" - %s via %s", n, nh)
		if path, ok := i.Paths[n]; ok {
			line += "  [" + protocol.FormatPath(path) + "]"
		}
		rt = append(rt, line)
	}
	writeSorted(&sb, rt)
	return sb.String()
}

func writeTopology(sb *strings.Builder, topo state.GlobalTopology) {
	if len(topo) == 0 {
		sb.WriteString(" (empty)\n")
		return
	}
	for _, n := range slices.Sorted(maps.Keys(topo)) {
		links := make([]string, 0, len(topo[n]))
		for _, e := range topo[n] {
			links = append(links, fmt.Sprintf("%s %s", e.Neighbour, fmtLatency(e.Latency)))
		}
		sb.WriteString(fmt.Sprintf(" - %s: %s\n", n, strings.Join(links, ", ")))
	}
}

func writeSorted(sb *strings.Builder, lines []string) {
	if len(lines) == 0 {
		sb.WriteString(" (none)\n")
		return
	}
	slices.Sort(lines)
	sb.WriteString(strings.Join(lines, "\n") + "\n")
}

func fmtLatency(l float64) string {
	return time.Duration(l * float64(time.Second)).Round(time.Microsecond).String()
}
