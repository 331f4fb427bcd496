package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/encodeous/strand/protocol"
	"github.com/encodeous/strand/routing"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes [snapshot]",
	Short: "Computes the route table of a saved topology snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := state.DefaultSnapshotPath
		if len(args) == 1 {
			path = args[0]
		}
		gw, _ := cmd.Flags().GetString("gateway")
		if err := state.NameValidator(gw); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		alg, _ := cmd.Flags().GetString("algorithm")
		solver, err := routing.SolverFor(state.Algorithm(alg))
		if err != nil {
			return err
		}
		topo, err := snapshot.NewFile(path).Load()
		if err != nil {
			return err
		}
		return printRoutes(os.Stdout, topo, state.NodeId(gw), solver)
	},
	GroupID: "strand",
}

func printRoutes(w io.Writer, topo state.GlobalTopology, gateway state.NodeId, solver routing.Solver) error {
	routes, tree := routing.ComputeRoutes(topo, gateway, solver)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NODE\tNEXT HOP\tDISTANCE\tPATH\n")
	for _, n := range topo.Nodes() {
		if n == gateway {
			continue
		}
		nh, ok := routes[n]
		if !ok {
			fmt.Fprintf(tw, "%s\t-\tunreachable\t-\n", n)
			continue
		}
		path, err := tree.Path(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n, nh, protocol.FormatFloat(tree.Distance(n)), protocol.FormatPath(path))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !slices.Contains(topo.Nodes(), gateway) {
		fmt.Fprintf(w, "warning: gateway %s does not appear in the topology\n", gateway)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringP("gateway", "g", "", "gateway id")
	routesCmd.Flags().StringP("algorithm", "a", string(state.DefaultAlgorithm), "dijkstra or bellman_ford")
	_ = routesCmd.MarkFlagRequired("gateway")
}
