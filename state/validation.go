package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern = regexp.MustCompile("^[0-9A-Za-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

// NameValidator checks that s can be used as a node id. Ids are embedded in topic names and
// colon separated payloads, so separators are not allowed.
func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	if s == BroadcastId {
		return fmt.Errorf("%s is reserved", s)
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	err := NameValidator(string(node.Id))
	if err != nil {
		return err
	}
	err = NameValidator(string(node.Gateway))
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if node.MaxDegree < 1 {
		return fmt.Errorf("max_degree must be at least 1, got %d", node.MaxDegree)
	}
	switch node.Algorithm {
	case Dijkstra, BellmanFord:
	default:
		return fmt.Errorf("unknown algorithm %q, expected %q or %q", node.Algorithm, Dijkstra, BellmanFord)
	}
	switch node.Bus.Kind {
	case BusMQTT, BusRedis:
		if node.Bus.Address == "" {
			return fmt.Errorf("bus.address must be set for %s", node.Bus.Kind)
		}
	case BusMemory:
	default:
		return fmt.Errorf("unknown bus kind %q", node.Bus.Kind)
	}
	if node.Bus.QoS > 2 {
		return fmt.Errorf("bus.qos must be 0, 1 or 2, got %d", node.Bus.QoS)
	}
	for name, d := range map[string]int64{
		"announce_interval": int64(node.AnnounceInterval),
		"report_interval":   int64(node.ReportInterval),
		"settle_delay":      int64(node.SettleDelay),
		"probe_timeout":     int64(node.ProbeTimeout),
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}
