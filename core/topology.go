package core

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/routing"
	"github.com/encodeous/strand/state"
)

// Topology reports local links to the gateway. On the gateway it also aggregates the reports into the
// global topology and distributes next hops.
type Topology struct {
	Solver routing.Solver
	// Tree is the last shortest path tree computed by the gateway
	Tree *routing.Tree

	settle *clock.Timer
}

func (t *Topology) Init(s *state.State) error {
	s.Log.Debug("init topology")
	solver, err := routing.SolverFor(s.Algorithm)
	if err != nil {
		return err
	}
	t.Solver = solver

	if s.IsGateway() {
		if s.RestoreSnapshot && s.Store != nil {
			topo, err := s.Store.Load()
			if err != nil {
				return err
			}
			// our own links are rebuilt from scratch
			delete(topo, s.Id)
			s.Global = topo
			s.Log.Info("restored topology snapshot", "nodes", len(topo))
			t.recompute(s)
		}
		return nil
	}

	t.settle = s.Env.ScheduleTask(func(s *state.State) error {
		s.Env.RepeatTask(t.report, s.ReportInterval)
		return nil
	}, s.SettleDelay)
	return nil
}

func (t *Topology) Cleanup(s *state.State) error {
	if t.settle != nil {
		t.settle.Stop()
	}
	return nil
}

// report publishes our links to the gateway
func (t *Topology) report(s *state.State) error {
	if len(s.Neighbours) == 0 {
		s.Log.Debug("no links to report")
		return nil
	}
	publish(s, protocol.TopologyReport{To: s.Gateway, Sender: s.Id, Links: s.LocalTopology()})
	return nil
}

func (t *Topology) onReport(s *state.State, m protocol.TopologyReport) error {
	for _, err := range m.Invalid {
		s.Log.Warn("skipped report field", "from", m.Sender, "error", err)
	}
	if m.Sender == s.Id {
		return nil
	}
	if !s.IsGateway() {
		s.Cache.Replace(m.Sender, m.Links)
		s.Log.Debug("cached topology", "of", m.Sender, "links", len(m.Links))
		return nil
	}

	s.Global.Replace(m.Sender, m.Links)
	for _, l := range m.Links {
		s.Latency.Set(m.Sender, l.Neighbour, l.Latency)
	}
	s.Log.Debug("received topology report", "from", m.Sender, "links", len(m.Links))
	t.save(s)
	t.recompute(s)
	return nil
}

func (t *Topology) onRequest(s *state.State, m protocol.TopologyRequest) error {
	if m.Sender == s.Id {
		return nil
	}
	publish(s, protocol.TopologyReport{To: m.Sender, Sender: s.Id, Links: s.LocalTopology()})
	return nil
}

func (t *Topology) onNextHop(s *state.State, m protocol.NextHopUpdate) error {
	if s.IsGateway() {
		return nil
	}
	if s.NextHop != m.NextHop {
		s.Log.Info("next hop updated", "next_hop", m.NextHop)
		emit(s, NextHopEvent{Node: s.Id, NextHop: m.NextHop})
	}
	s.NextHop = m.NextHop
	return nil
}

// LinksChanged is called whenever this node gains or loses a link. The gateway folds its own links
// into the global topology and recomputes.
func (t *Topology) LinksChanged(s *state.State) {
	if !s.IsGateway() {
		return
	}
	t.foldSelf(s)
	t.save(s)
	t.recompute(s)
}

func (t *Topology) foldSelf(s *state.State) {
	if len(s.Neighbours) == 0 {
		delete(s.Global, s.Id)
		return
	}
	s.Global.Replace(s.Id, s.LocalTopology())
}

func (t *Topology) save(s *state.State) {
	if s.Store == nil {
		return
	}
	if err := s.Store.Save(s.Global); err != nil {
		s.Log.Warn("failed to save topology snapshot", "error", err)
	}
}

// recompute rebuilds the route table and sends every reachable node its next hop
func (t *Topology) recompute(s *state.State) {
	start := time.Now()
	routes, tree := routing.ComputeRoutes(s.Global, s.Id, t.Solver)
	perf.RouteComputeTime.Add(float64(time.Since(start).Microseconds()))
	perf.RouteRecomputations.Add(1)

	s.Routes = routes
	t.Tree = tree
	s.Log.Debug("recomputed routes", "algorithm", t.Solver.Algorithm(), "nodes", len(routes))
	emit(s, RoutesEvent{Gateway: s.Id, Routes: routes})

	for _, n := range s.Global.Nodes() {
		nh, ok := routes[n]
		if !ok {
			continue
		}
		publish(s, protocol.NextHopUpdate{To: n, NextHop: nh})
	}
}

// Reset drops the aggregated topology and persists the empty snapshot
func (t *Topology) Reset(s *state.State) {
	t.Tree = nil
	if s.IsGateway() {
		t.save(s)
		emit(s, RoutesEvent{Gateway: s.Id, Routes: s.Routes})
	}
}
