package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
	assert.NoError(t, NameValidator("Node7"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("a:b"))
	assert.Error(t, NameValidator("a/b"))
	assert.Error(t, NameValidator("a,b"))
	assert.Error(t, NameValidator(BroadcastId))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func validConfig() *LocalCfg {
	cfg := &LocalCfg{Id: "A", Gateway: "G"}
	ExpandLocalConfig(cfg)
	return cfg
}

func TestNodeConfigValidator(t *testing.T) {
	assert.NoError(t, NodeConfigValidator(validConfig()))

	for name, mutate := range map[string]func(*LocalCfg){
		"bad id":         func(c *LocalCfg) { c.Id = "a b" },
		"bad gateway":    func(c *LocalCfg) { c.Gateway = "" },
		"zero degree":    func(c *LocalCfg) { c.MaxDegree = 0 },
		"bad algorithm":  func(c *LocalCfg) { c.Algorithm = "floyd" },
		"bad bus":        func(c *LocalCfg) { c.Bus.Kind = "kafka" },
		"missing addr":   func(c *LocalCfg) { c.Bus.Kind, c.Bus.Address = BusRedis, "" },
		"bad qos":        func(c *LocalCfg) { c.Bus.QoS = 3 },
		"negative delay": func(c *LocalCfg) { c.SettleDelay = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, NodeConfigValidator(cfg))
		})
	}
}
