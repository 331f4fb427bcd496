package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/encodeous/strand/state"
	"github.com/manifoldco/promptui"
)

func promptDefaultStr(label string, def string, validateFunc promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
		Validate:  validateFunc,
	}
	return prompt.Run()
}

func promptYN(prefix string, def bool) bool {
	choose := promptui.Select{
		Label:     prefix,
		Items:     []string{"Yes", "No"},
		Size:      2,
		CursorPos: 0,
	}
	if !def {
		choose.CursorPos = 1
	}
	run, _, err := choose.Run()
	if err != nil {
		return false
	}
	return run == 0
}

// promptSelect asks for one of items, starting on def
func promptSelect(label string, items []string, def string) (string, error) {
	pos := 0
	for i, it := range items {
		if it == def {
			pos = i
		}
	}
	choose := promptui.Select{
		Label:     label,
		Items:     items,
		Size:      len(items),
		CursorPos: pos,
	}
	_, res, err := choose.Run()
	return res, err
}

// promptConfig fills cfg interactively, using its current values as defaults
func promptConfig(cfg *state.LocalCfg) error {
	id, err := promptDefaultStr("node id", string(cfg.Id), state.NameValidator)
	if err != nil {
		return err
	}
	cfg.Id = state.NodeId(id)

	gw := string(cfg.Gateway)
	if gw == "" {
		gw = id
	}
	gw, err = promptDefaultStr("gateway id", gw, state.NameValidator)
	if err != nil {
		return err
	}
	cfg.Gateway = state.NodeId(gw)

	if cfg.Id == cfg.Gateway {
		alg, err := promptSelect("Select the topology algorithm", []string{string(state.Dijkstra), string(state.BellmanFord)}, string(cfg.Algorithm))
		if err != nil {
			return err
		}
		cfg.Algorithm = state.Algorithm(alg)
	}

	kind, err := promptSelect("Select the message bus", []string{string(state.BusMQTT), string(state.BusRedis)}, string(cfg.Bus.Kind))
	if err != nil {
		return err
	}
	cfg.Bus.Kind = state.BusKind(kind)
	addr := cfg.Bus.Address
	if addr == "" {
		addr = defaultAddress(cfg.Bus.Kind)
	}
	cfg.Bus.Address, err = promptDefaultStr("bus address", addr, nil)
	return err
}

func defaultAddress(kind state.BusKind) string {
	if kind == state.BusRedis {
		return "127.0.0.1:6379"
	}
	return fmt.Sprintf("tcp://127.0.0.1:%d", state.DefaultMQTTPort)
}

func safeSaveFile(path string, name string) (string, error) {
	for {
		path, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		fmt.Printf("Where do you want to save the %s?\n", name)
		path, err = promptDefaultStr("path", path, state.PathValidator)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Warning: %s file already exists: %s, do you want to overwrite it?\n", name, path)
			if !promptYN("Overwrite?", false) {
				continue
			}
		}
		return path, nil
	}
}
