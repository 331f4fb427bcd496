package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandLocalConfig_Defaults(t *testing.T) {
	cfg := LocalCfg{Id: "A", Gateway: "G"}
	ExpandLocalConfig(&cfg)

	assert.Equal(t, DefaultMaxDegree, cfg.MaxDegree)
	assert.Equal(t, Dijkstra, cfg.Algorithm)
	assert.Equal(t, BusMQTT, cfg.Bus.Kind)
	assert.Equal(t, "tcp://127.0.0.1:1883", cfg.Bus.Address)
	assert.Equal(t, "A", cfg.Bus.ClientId)
	assert.Equal(t, AnnounceInterval, cfg.AnnounceInterval)
	assert.Equal(t, ReportInterval, cfg.ReportInterval)
	assert.Equal(t, SettleDelay, cfg.SettleDelay)
	assert.Equal(t, ProbeTimeout, cfg.ProbeTimeout)
	assert.Equal(t, DefaultSnapshotPath, cfg.SnapshotPath)
}

func TestExpandLocalConfig_KeepsValues(t *testing.T) {
	cfg := LocalCfg{
		Id:        "A",
		Gateway:   "G",
		MaxDegree: 5,
		Algorithm: BellmanFord,
		Bus:       BusCfg{Kind: BusRedis, Address: "localhost:6379", ClientId: "custom"},
	}
	ExpandLocalConfig(&cfg)

	assert.Equal(t, 5, cfg.MaxDegree)
	assert.Equal(t, BellmanFord, cfg.Algorithm)
	assert.Equal(t, "localhost:6379", cfg.Bus.Address)
	assert.Equal(t, "custom", cfg.Bus.ClientId)
}
