package core

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
)

var (
	ErrNoRoute        = errors.New("no route to gateway")
	ErrForwardingLoop = errors.New("forwarding loop")
)

// Forwarder moves application messages towards the gateway
type Forwarder struct{}

func (f *Forwarder) Init(s *state.State) error {
	s.Log.Debug("init forwarder")
	return nil
}

func (f *Forwarder) Cleanup(s *state.State) error {
	return nil
}

// Send originates a message. On the gateway the message is delivered locally.
func (f *Forwarder) Send(s *state.State, body string) error {
	m := protocol.Application{To: s.Gateway, Sender: s.Id, Body: body}
	if s.IsGateway() {
		f.deliver(s, m)
		return nil
	}
	return f.forward(s, m)
}

// NextHop returns the neighbour a message would be sent to and whether it was the gateway's choice
func (f *Forwarder) NextHop(s *state.State) (state.NodeId, bool, error) {
	if s.GetNeighbour(s.Gateway) != nil {
		return s.Gateway, true, nil
	}
	if s.NextHop != "" {
		return s.NextHop, true, nil
	}
	// fall back to the closest neighbour, ties go to the smallest id
	closest := make([]state.Pair[float64, state.NodeId], 0, len(s.Neighbours))
	for id, n := range s.Neighbours {
		closest = append(closest, state.Pair[float64, state.NodeId]{V1: n.Latency, V2: id})
	}
	if len(closest) == 0 {
		return "", false, ErrNoRoute
	}
	state.SortPairs(closest)
	return closest[0].V2, false, nil
}

func (f *Forwarder) forward(s *state.State, m protocol.Application) error {
	hop, _, err := f.NextHop(s)
	if err != nil {
		return err
	}
	out := protocol.Application{To: hop, Sender: m.Sender, Body: m.Body}
	if hop != s.Gateway {
		path := slices.Clone(m.Path)
		if len(path) == 0 || path[len(path)-1] != s.Id {
			path = append(path, s.Id)
		}
		out.Path = append(path, hop)
	}
	if !publish(s, out) {
		return fmt.Errorf("forward to %s failed", hop)
	}
	perf.ForwardedPerSecond.Add(1)
	s.Log.Debug("forwarded message", "from", m.Sender, "to", hop)
	if hop != s.Gateway && hop == s.NextHop {
		// keep our view of the next hop fresh
		publish(s, protocol.TopologyRequest{To: hop, Sender: s.Id})
	}
	return nil
}

func (f *Forwarder) onMessage(s *state.State, m protocol.Application) error {
	if s.IsGateway() {
		f.deliver(s, m)
		if !s.NoResetOnMessage {
			Get[*Lifecycle](s).Reset(s)
		}
		return nil
	}
	if idx := slices.Index(m.Path, s.Id); idx >= 0 && idx < len(m.Path)-1 {
		s.Log.Warn("dropped message", "from", m.Sender, "path", protocol.FormatPath(m.Path), "error", ErrForwardingLoop)
		return nil
	}
	if err := f.forward(s, m); err != nil {
		s.Log.Warn("dropped message", "from", m.Sender, "error", err)
	}
	return nil
}

func (f *Forwarder) deliver(s *state.State, m protocol.Application) {
	perf.DeliveredPerSecond.Add(1)
	s.Log.Info("received message", "from", m.Sender, "body", m.Body, "path", protocol.FormatPath(m.Path))
	emit(s, DeliveredEvent{Gateway: s.Id, Sender: m.Sender, Body: m.Body, Path: m.Path})
	if s.MessageLog == "" {
		return
	}
	if err := appendMessageLog(s.MessageLog, s.Clock.Now(), m); err != nil {
		s.Log.Warn("failed to write message log", "error", err)
	}
}

func appendMessageLog(path string, at time.Time, m protocol.Application) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%s: %s: %s\n", at.Format(time.ANSIC), m.Sender, m.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
