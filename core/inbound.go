package core

import (
	"context"
	"fmt"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
	"go.uber.org/multierr"
)

// Subscriber is the inbound half of the message bus
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h bus.Handler) error
	Unsubscribe(ctx context.Context, topics ...string) error
}

// Inbound subscribes to every channel of this node and dispatches decoded messages to the modules
type Inbound struct {
	Sub    Subscriber
	topics []string
}

func (i *Inbound) Init(s *state.State) error {
	if i.Sub == nil {
		sub, ok := s.Bus.(Subscriber)
		if !ok {
			return fmt.Errorf("bus %T cannot subscribe", s.Bus)
		}
		i.Sub = sub
	}
	env := s.Env
	for _, topic := range protocol.Subscriptions(s.Id) {
		if err := i.Sub.Subscribe(s.Context, topic, func(topic string, payload []byte) {
			receive(env, topic, payload)
		}); err != nil {
			return err
		}
		i.topics = append(i.topics, topic)
	}
	s.Log.Debug("subscribed", "topics", len(i.topics))
	return nil
}

func (i *Inbound) Cleanup(s *state.State) error {
	ctx, cancel := context.WithTimeout(context.Background(), state.PublishTimeout)
	defer cancel()
	var err error
	for _, topic := range i.topics {
		err = multierr.Append(err, i.Sub.Unsubscribe(ctx, topic))
	}
	i.topics = nil
	return err
}

// receive runs on the bus goroutine
func receive(e *state.Env, topic string, payload []byte) {
	perf.ReceivedPerSecond.Add(1)
	msg, err := protocol.Decode(topic, payload)
	if err != nil {
		perf.MalformedPerSecond.Add(1)
		e.Log.Warn("dropped malformed message", "topic", topic, "error", err)
		return
	}
	e.Dispatch(func(s *state.State) error {
		return handle(s, msg)
	})
}

func handle(s *state.State, msg protocol.Msg) error {
	s.Log.Debug("received", "kind", msg.Kind())
	switch m := msg.(type) {
	case protocol.Announce:
		return Get[*Admission](s).onAnnounce(s, m)
	case protocol.Probe:
		return Get[*LinkEstimator](s).onProbe(s, m)
	case protocol.Echo:
		return Get[*LinkEstimator](s).onEcho(s, m)
	case protocol.AckRequest:
		return Get[*Admission](s).onAckRequest(s, m)
	case protocol.TopologyReport:
		return Get[*Topology](s).onReport(s, m)
	case protocol.TopologyRequest:
		return Get[*Topology](s).onRequest(s, m)
	case protocol.NextHopUpdate:
		return Get[*Topology](s).onNextHop(s, m)
	case protocol.Disconnect:
		return Get[*Lifecycle](s).onDisconnect(s, m)
	case protocol.DisconnectAll:
		return Get[*Lifecycle](s).onDisconnectAll(s, m)
	case protocol.GlobalReset:
		return Get[*Lifecycle](s).onReset(s, m)
	case protocol.Application:
		return Get[*Forwarder](s).onMessage(s, m)
	default:
		s.Log.Warn("unhandled message", "kind", msg.Kind())
		return nil
	}
}
