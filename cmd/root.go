package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var nodeConfigPath = "node.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "strand",
	Short: "Strand self-organizing message network",
	Long: `Strand builds a degree-bounded mesh over a publish/subscribe broker.
Nodes discover each other, measure link latency and forward messages to a single gateway along the shortest paths it computes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func logLevel(cmd *cobra.Command) slog.Level {
	if ok, _ := cmd.Flags().GetBool("verbose"); ok {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize Strand",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "strand",
		Title: "Strand Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "node-config", "n", nodeConfigPath, "node-specific config")
}
