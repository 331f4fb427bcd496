package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/core"
	"github.com/encodeous/strand/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a strand node",
	Long:  `This will run a node on the current host, connected to the broker in its config. Commands are read from stdin unless --no-shell is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadNodeConfig(nodeConfigPath)
		if err != nil {
			return err
		}
		if alg, _ := cmd.Flags().GetString("algorithm"); alg != "" {
			cfg.Algorithm = state.Algorithm(alg)
			if err := state.NodeConfigValidator(cfg); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := bus.Open(ctx, cfg.Bus)
		if err != nil {
			return fmt.Errorf("connect to %s bus: %w", cfg.Bus.Kind, err)
		}
		n, err := core.New(*cfg, core.Options{Bus: b, LogLevel: logLevel(cmd)})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer stop()
			return n.Run()
		})
		g.Go(func() error {
			<-gctx.Done()
			n.Stop()
			return nil
		})
		g.Go(func() error {
			return core.ServeIPC(gctx, n, cfg.ControlSocket, n.Log())
		})
		if cfg.DebugAddr != "" {
			g.Go(func() error {
				return serveDebug(gctx, cfg.DebugAddr)
			})
		}
		if noShell, _ := cmd.Flags().GetBool("no-shell"); !noShell {
			// stdin reads cannot be interrupted, so the shell is not part of the group
			go func() {
				runShell(n, os.Stdin, os.Stdout)
				stop()
			}()
		}
		return g.Wait()
	},
	GroupID: "strand",
}

// serveDebug serves expvar and the metric dashboard until ctx is done
func serveDebug(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("algorithm", "a", "", "Override the routing algorithm, dijkstra or bellman_ford")
	runCmd.Flags().Bool("no-shell", false, "Do not read commands from stdin")
}
