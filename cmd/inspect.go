package cmd

import (
	"fmt"
	"strings"

	"github.com/encodeous/strand/core"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [command]",
	Aliases: []string{"i"},
	Short:   "Inspects a running node, or sends it a shell command",
	Long: `Connects to the control socket of the node described by --node-config.
Without arguments it prints the node's state, otherwise the arguments are run as a shell command, e.g. strand inspect send hello.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadNodeConfig(nodeConfigPath)
		if err != nil {
			return err
		}
		command := "show"
		if len(args) > 0 {
			command = strings.Join(args, " ")
		}
		result, err := core.IPCGet(cfg.ControlSocket, command)
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "strand",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
