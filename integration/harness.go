//go:build smoke

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/core"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mosquittoConf = `listener 1883
allow_anonymous true
`

// StartMosquitto starts an MQTT broker and returns its tcp:// address
func StartMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:2",
			ExposedPorts: []string{"1883/tcp"},
			Files: []testcontainers.ContainerFile{
				{
					Reader:            strings.NewReader(mosquittoConf),
					ContainerFilePath: "/mosquitto/config/mosquitto.conf",
					FileMode:          0o644,
				},
			},
			WaitingFor: wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, c)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "1883/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// StartRedis starts a Redis server and returns its host:port address
func StartRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, c)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// NodeConfig returns a config with short intervals so a network converges within seconds
func NodeConfig(id, gateway state.NodeId, busCfg state.BusCfg) state.LocalCfg {
	return state.LocalCfg{
		Id:               id,
		Gateway:          gateway,
		MaxDegree:        2,
		Bus:              busCfg,
		AnnounceInterval: 200 * time.Millisecond,
		SettleDelay:      500 * time.Millisecond,
		ReportInterval:   500 * time.Millisecond,
		ProbeTimeout:     2 * time.Second,
	}
}

// StartNode connects a node to the broker and runs it until the test ends
func StartNode(ctx context.Context, t *testing.T, cfg state.LocalCfg) *core.Node {
	t.Helper()
	state.ExpandLocalConfig(&cfg)
	b, err := bus.Open(ctx, cfg.Bus)
	require.NoError(t, err)

	opts := core.Options{
		Bus:    b,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).With("node", cfg.Id),
	}
	if cfg.Id == cfg.Gateway {
		opts.Store = snapshot.NewFile(t.TempDir() + "/connections_list.json")
	}
	n, err := core.New(cfg, opts)
	require.NoError(t, err)
	go func() {
		_ = n.Run()
	}()
	t.Cleanup(n.Stop)
	return n
}
