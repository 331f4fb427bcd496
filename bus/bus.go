// Package bus provides the topic based publish/subscribe transports a node runs over.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/encodeous/strand/state"
)

var ErrClosed = errors.New("bus closed")

// Handler is called for every message received on a subscribed topic. Handlers of one subscriber
// are called sequentially.
type Handler func(topic string, payload []byte)

type Bus interface {
	state.Publisher
	Subscribe(ctx context.Context, topic string, h Handler) error
	Unsubscribe(ctx context.Context, topics ...string) error
	Close() error
}

// Open connects to the bus described by cfg. Memory buses are created from the Broker instead.
func Open(ctx context.Context, cfg state.BusCfg) (Bus, error) {
	switch cfg.Kind {
	case state.BusMQTT:
		return DialMQTT(ctx, cfg)
	case state.BusRedis:
		return DialRedis(ctx, cfg)
	case state.BusMemory:
		return nil, fmt.Errorf("memory bus must be created from a Broker")
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}
