package core

import (
	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
	"github.com/jellydator/ttlcache/v3"
)

// LinkEstimator measures round trip latency to prospective neighbours
type LinkEstimator struct {
	// pending maps a probed node to the timestamp carried by the probe
	pending *ttlcache.Cache[state.NodeId, float64]
}

func (l *LinkEstimator) Init(s *state.State) error {
	s.Log.Debug("init link estimator")
	l.pending = ttlcache.New[state.NodeId, float64](
		ttlcache.WithTTL[state.NodeId, float64](s.ProbeTimeout),
		ttlcache.WithDisableTouchOnHit[state.NodeId, float64](),
	)
	s.Env.RepeatTask(gc, state.GcDelay)
	return nil
}

func (l *LinkEstimator) Cleanup(s *state.State) error {
	l.pending.DeleteAll()
	return nil
}

// Probe sends a latency probe to neighbour, replacing any probe still in flight
func (l *LinkEstimator) Probe(s *state.State, neighbour state.NodeId) {
	ts := s.Now()
	l.pending.Set(neighbour, ts, ttlcache.DefaultTTL)
	s.Peers[neighbour] = state.Probing
	publish(s, protocol.Probe{To: neighbour, Sender: s.Id, Timestamp: ts})
}

func (l *LinkEstimator) Pending(neighbour state.NodeId) bool {
	return l.pending.Has(neighbour)
}

// Abandon drops every probe in flight
func (l *LinkEstimator) Abandon() {
	l.pending.DeleteAll()
}

// probes are always answered, no accepted link is required
func (l *LinkEstimator) onProbe(s *state.State, m protocol.Probe) error {
	if m.Sender == s.Id {
		return nil
	}
	publish(s, protocol.Echo{To: m.Sender, Sender: s.Id, Timestamp: m.Timestamp})
	return nil
}

func (l *LinkEstimator) onEcho(s *state.State, m protocol.Echo) error {
	item := l.pending.Get(m.Sender)
	if item == nil {
		s.Log.Debug("ignoring echo without a pending probe", "from", m.Sender)
		return nil
	}
	if item.Value() != m.Timestamp {
		s.Log.Debug("ignoring stale echo", "from", m.Sender, "ts", m.Timestamp, "expected", item.Value())
		return nil
	}
	l.pending.Delete(m.Sender)

	latency := max(s.Now()-m.Timestamp, 0)
	s.Latency.Set(s.Id, m.Sender, latency)
	perf.ProbeLatency.Add(latency * 1000)
	s.Log.Debug("measured latency", "to", m.Sender, "latency", latency)

	Get[*Admission](s).Measured(s, m.Sender, latency)
	return nil
}
