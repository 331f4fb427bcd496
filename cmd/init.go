package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/strand/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create a node configuration",
	Long:  `Writes a node config. With --interactive every value is prompted for, otherwise the id argument and flags are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interactive, _ := cmd.Flags().GetBool("interactive")
		if len(args) != 1 && !interactive {
			return cmd.Usage()
		}

		nodeCfg := state.LocalCfg{}
		if len(args) == 1 {
			nodeCfg.Id = state.NodeId(args[0])
		}
		gw, _ := cmd.Flags().GetString("gateway")
		nodeCfg.Gateway = state.NodeId(gw)
		if nodeCfg.Gateway == "" {
			nodeCfg.Gateway = nodeCfg.Id
		}
		alg, _ := cmd.Flags().GetString("algorithm")
		nodeCfg.Algorithm = state.Algorithm(alg)
		kind, _ := cmd.Flags().GetString("bus")
		nodeCfg.Bus.Kind = state.BusKind(kind)
		nodeCfg.Bus.Address, _ = cmd.Flags().GetString("address")
		nodeCfg.MaxDegree, _ = cmd.Flags().GetInt("max-degree")

		outPath, _ := cmd.Flags().GetString("output")
		if interactive {
			if err := promptConfig(&nodeCfg); err != nil {
				return err
			}
			path, err := safeSaveFile(outPath, "node config")
			if err != nil {
				return err
			}
			outPath = path
		}
		if nodeCfg.Bus.Address == "" && nodeCfg.Bus.Kind != state.BusMemory {
			nodeCfg.Bus.Address = defaultAddress(nodeCfg.Bus.Kind)
		}

		// validate with defaults filled in, but only write what was chosen
		check := nodeCfg
		state.ExpandLocalConfig(&check)
		if err := state.NodeConfigValidator(&check); err != nil {
			return err
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			return err
		}
		err = os.WriteFile(outPath, ncfg, 0600)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote node config for %s to %s\n", nodeCfg.Id, outPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", "node.yaml", "node config output file path")
	newCmd.Flags().StringP("gateway", "g", "", "gateway id, defaults to the node itself")
	newCmd.Flags().StringP("algorithm", "a", string(state.DefaultAlgorithm), "routing algorithm used by the gateway")
	newCmd.Flags().StringP("bus", "b", string(state.DefaultBusKind), "message bus, mqtt or redis")
	newCmd.Flags().String("address", "", "bus address")
	newCmd.Flags().Int("max-degree", state.DefaultMaxDegree, "maximum number of links")
	newCmd.Flags().BoolP("interactive", "i", false, "prompt for every value")
}
