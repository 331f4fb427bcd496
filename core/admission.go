package core

import (
	"fmt"
	"time"

	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
)

// Outcome is the result of an admission attempt. Rejections are not errors.
type Outcome int

const (
	Admitted Outcome = iota
	RejectedDegree
	RejectedExisting
	RejectedSlots
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case RejectedDegree:
		return "rejected: degree limit reached"
	case RejectedExisting:
		return "rejected: already a neighbour"
	case RejectedSlots:
		return "rejected: neighbour has no free slot"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Admission turns measured peers into accepted links while keeping the degree bounded
type Admission struct {
	// ackDeadline holds when a link in AckPending is given up if the peer never admits us back
	ackDeadline map[state.NodeId]time.Time
}

func (a *Admission) Init(s *state.State) error {
	s.Log.Debug("init admission controller")
	a.ackDeadline = make(map[state.NodeId]time.Time)
	return nil
}

func (a *Admission) Cleanup(s *state.State) error {
	clear(a.ackDeadline)
	return nil
}

// ackTimeout covers one announce round of the peer plus its probe
func ackTimeout(s *state.State) time.Duration {
	return s.AnnounceInterval + s.ProbeTimeout
}

func (a *Admission) onAnnounce(s *state.State, m protocol.Announce) error {
	if m.Sender == s.Id {
		return nil
	}
	if s.GetNeighbour(m.Sender) != nil {
		return nil
	}
	if _, ok := s.Peers[m.Sender]; !ok {
		s.Peers[m.Sender] = state.Announced
	}
	Get[*LinkEstimator](s).Probe(s, m.Sender)
	return nil
}

// Check reports whether a link to neighbour may be admitted
func (a *Admission) Check(s *state.State, neighbour state.NodeId) Outcome {
	switch {
	case len(s.Neighbours) >= s.MaxDegree:
		return RejectedDegree
	case s.GetNeighbour(neighbour) != nil:
		return RejectedExisting
	case s.Slots.Get(neighbour) <= 0:
		// only our own links lower a neighbour's counter, so this guards the bookkeeping
		return RejectedSlots
	}
	return Admitted
}

// Measured is called by the link estimator once the latency to neighbour is known
func (a *Admission) Measured(s *state.State, neighbour state.NodeId, latency float64) Outcome {
	outcome := a.Check(s, neighbour)
	if outcome != Admitted {
		if s.GetNeighbour(neighbour) == nil {
			s.Peers[neighbour] = state.Announced
		}
		s.Log.Debug("rejected connection", "from", neighbour, "reason", outcome.String())
		emit(s, RejectedEvent{Node: s.Id, Neighbour: neighbour, Outcome: outcome})
		return outcome
	}
	if !s.Slots.Take(s.Id) {
		// the degree check above keeps our own slots positive
		return RejectedDegree
	}
	s.Slots.Take(neighbour)

	s.Neighbours[neighbour] = &state.Neighbour{
		Id:      neighbour,
		Latency: latency,
		Since:   s.Clock.Now(),
	}
	s.Latency.Set(s.Id, neighbour, latency)
	if s.NoAckHandshake {
		s.Peers[neighbour] = state.Accepted
	} else {
		s.Peers[neighbour] = state.AckPending
		a.ackDeadline[neighbour] = s.Clock.Now().Add(ackTimeout(s))
		publish(s, protocol.AckRequest{To: neighbour, Sender: s.Id})
	}
	s.Log.Info("accepted connection", "neighbour", neighbour, "latency", latency)
	emit(s, AdmittedEvent{Node: s.Id, Neighbour: neighbour, Latency: latency})

	publish(s, protocol.TopologyRequest{To: neighbour, Sender: s.Id})
	Get[*Topology](s).LinksChanged(s)
	return Admitted
}

func (a *Admission) onAckRequest(s *state.State, m protocol.AckRequest) error {
	if s.GetNeighbour(m.Sender) == nil {
		s.Log.Warn("received unexpected ack", "from", m.Sender)
		if len(s.Neighbours) >= s.MaxDegree {
			// we cannot admit the sender back, tell it to release the link
			publish(s, protocol.Disconnect{To: m.Sender, Sender: s.Id})
		}
		return nil
	}
	delete(a.ackDeadline, m.Sender)
	if s.Peers[m.Sender] != state.Accepted {
		s.Peers[m.Sender] = state.Accepted
		s.Log.Debug("link acknowledged", "neighbour", m.Sender)
		emit(s, AcceptedEvent{Node: s.Id, Neighbour: m.Sender})
	}
	return nil
}

// expireAcks drops links whose peer never sent its own ack request
func (a *Admission) expireAcks(s *state.State) {
	now := s.Clock.Now()
	changed := false
	for id, deadline := range a.ackDeadline {
		if s.GetNeighbour(id) == nil || s.Peers[id] != state.AckPending {
			delete(a.ackDeadline, id)
			continue
		}
		if now.Before(deadline) {
			continue
		}
		delete(a.ackDeadline, id)
		s.Log.Info("link was never acknowledged", "neighbour", id)
		if Get[*Lifecycle](s).drop(s, id) {
			publish(s, protocol.Disconnect{To: id, Sender: s.Id})
			changed = true
		}
	}
	if changed {
		Get[*Topology](s).LinksChanged(s)
	}
}
