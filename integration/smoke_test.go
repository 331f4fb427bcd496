//go:build smoke

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/encodeous/strand/core"
	"github.com/encodeous/strand/state"
	"github.com/stretchr/testify/require"
)

// exchange forms a three node network and checks that a message from B reaches the gateway
func exchange(ctx context.Context, t *testing.T, busCfg state.BusCfg) {
	g := StartNode(ctx, t, NodeConfig("G", "G", busCfg))
	StartNode(ctx, t, NodeConfig("A", "G", busCfg))
	b := StartNode(ctx, t, NodeConfig("B", "G", busCfg))

	require.Eventually(t, func() bool {
		_, routes, err := g.Routes()
		return err == nil && len(routes) == 2
	}, 20*time.Second, 100*time.Millisecond)

	events, unregister := g.Listen()
	t.Cleanup(unregister)
	require.NoError(t, b.Send("hello over the broker"))

	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if d, ok := ev.(core.DeliveredEvent); ok {
				require.Equal(t, state.NodeId("B"), d.Sender)
				require.Equal(t, "hello over the broker", d.Body)
				return
			}
		case <-timeout:
			t.Fatal("message was not delivered")
		}
	}
}

func TestMQTT(t *testing.T) {
	ctx := context.Background()
	addr := StartMosquitto(ctx, t)
	exchange(ctx, t, state.BusCfg{Kind: state.BusMQTT, Address: addr, QoS: 1})
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	addr := StartRedis(ctx, t)
	exchange(ctx, t, state.BusCfg{Kind: state.BusRedis, Address: addr})
}
