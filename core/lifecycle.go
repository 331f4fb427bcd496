package core

import (
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
)

// Lifecycle announces presence and handles disconnects and resets
type Lifecycle struct{}

func (l *Lifecycle) Init(s *state.State) error {
	s.Log.Debug("init lifecycle")
	s.Env.RepeatTask(l.announce, s.AnnounceInterval)
	return nil
}

func (l *Lifecycle) Cleanup(s *state.State) error {
	return nil
}

func (l *Lifecycle) announce(s *state.State) error {
	if s.Slots.Get(s.Id) <= 0 {
		return nil
	}
	publish(s, protocol.Announce{Sender: s.Id})
	return nil
}

// Reset tears down every link and restarts discovery. On the gateway the reset is network wide.
func (l *Lifecycle) Reset(s *state.State) {
	for _, n := range s.NeighbourIds() {
		publish(s, protocol.Disconnect{To: n, Sender: s.Id})
	}
	if s.IsGateway() {
		publish(s, protocol.DisconnectAll{Sender: s.Id})
		publish(s, protocol.GlobalReset{})
	}

	s.Clear()
	Get[*LinkEstimator](s).Abandon()
	Get[*Topology](s).Reset(s)
	s.Resets++
	s.Log.Info("reset connections", "global", s.IsGateway())
	emit(s, ResetEvent{Node: s.Id, Neighbours: len(s.Neighbours)})

	_ = l.announce(s)
}

// Leave notifies the network that this node is departing. The caller stops the node afterwards.
func (l *Lifecycle) Leave(s *state.State) {
	for _, n := range s.NeighbourIds() {
		publish(s, protocol.Disconnect{To: n, Sender: s.Id})
	}
	publish(s, protocol.DisconnectAll{Sender: s.Id})
	s.Log.Info("left the network")
}

// drop removes the link to neighbour and gives both slots back
func (l *Lifecycle) drop(s *state.State, neighbour state.NodeId) bool {
	if s.GetNeighbour(neighbour) == nil {
		return false
	}
	delete(s.Neighbours, neighbour)
	delete(s.Cache, neighbour)
	s.Latency.Delete(s.Id, neighbour)
	s.Slots.Release(s.Id)
	s.Slots.Release(neighbour)
	s.Peers[neighbour] = state.Disconnected
	if s.NextHop == neighbour {
		s.NextHop = ""
	}
	s.Log.Info("disconnected", "neighbour", neighbour)
	emit(s, DisconnectedEvent{Node: s.Id, Neighbour: neighbour})
	return true
}

func (l *Lifecycle) onDisconnect(s *state.State, m protocol.Disconnect) error {
	if l.drop(s, m.Sender) {
		Get[*Topology](s).LinksChanged(s)
	}
	return nil
}

func (l *Lifecycle) onDisconnectAll(s *state.State, m protocol.DisconnectAll) error {
	if m.Sender == s.Id {
		return nil
	}
	dropped := l.drop(s, m.Sender)
	if !s.IsGateway() {
		return nil
	}
	removed := s.Global.RemoveNode(m.Sender)
	if dropped || removed {
		s.Log.Info("node departed", "node", m.Sender)
		Get[*Topology](s).LinksChanged(s)
	}
	return nil
}

func (l *Lifecycle) onReset(s *state.State, m protocol.GlobalReset) error {
	if s.IsGateway() {
		return nil
	}
	l.Reset(s)
	return nil
}
