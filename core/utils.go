package core

import (
	"context"
	"reflect"

	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/state"
)

func Get[T state.NyModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

// publish sends msg on the bus. Failures are logged, delivery is best effort.
func publish(s *state.State, msg protocol.Msg) bool {
	topic, payload := msg.Encode()
	ctx, cancel := context.WithTimeout(s.Context, state.PublishTimeout)
	defer cancel()
	if err := s.Bus.Publish(ctx, topic, payload); err != nil {
		if s.Context.Err() == nil {
			s.Log.Warn("publish failed", "topic", topic, "kind", msg.Kind(), "error", err)
		}
		return false
	}
	perf.PublishedPerSecond.Add(1)
	s.Log.Debug("sent", "topic", topic, "payload", string(payload))
	return true
}

func emit(s *state.State, ev any) {
	Get[*Events](s).emit(ev)
}
