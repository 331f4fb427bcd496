package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/strand/bus"
	"github.com/encodeous/strand/core"
	"github.com/encodeous/strand/snapshot"
	"github.com/encodeous/strand/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// simLink is a simulated one way delay between two nodes, written as a-b=5ms
type simLink struct {
	A, B  state.NodeId
	Delay time.Duration
}

func parseSimLink(s string) (simLink, error) {
	pair, delay, ok := strings.Cut(s, "=")
	if !ok {
		return simLink{}, fmt.Errorf("invalid link %q, expected a-b=delay", s)
	}
	a, b, ok := strings.Cut(pair, "-")
	if !ok || a == "" || b == "" {
		return simLink{}, fmt.Errorf("invalid link %q, expected a-b=delay", s)
	}
	d, err := time.ParseDuration(delay)
	if err != nil {
		return simLink{}, fmt.Errorf("invalid link %q: %w", s, err)
	}
	return simLink{A: state.NodeId(a), B: state.NodeId(b), Delay: d}, nil
}

// simMessage is a message sent by From after the network had time to settle, written as from:body
type simMessage struct {
	From state.NodeId
	Body string
}

func parseSimMessage(s string) (simMessage, error) {
	from, body, ok := strings.Cut(s, ":")
	if !ok || from == "" {
		return simMessage{}, fmt.Errorf("invalid message %q, expected from:body", s)
	}
	return simMessage{From: state.NodeId(from), Body: body}, nil
}

type simConfig struct {
	Nodes    []state.NodeId
	Template state.LocalCfg
	Links    []simLink
	Messages []simMessage
	Settle   time.Duration
	Duration time.Duration
	LogLevel slog.Level
}

// runSim runs every node on one in-memory broker and prints their events to out
func runSim(ctx context.Context, sc simConfig, out io.Writer) error {
	broker := bus.NewBroker(nil)
	for _, l := range sc.Links {
		broker.SetLatency(l.A, l.B, l.Delay)
	}

	nodes := make(map[state.NodeId]*core.Node)
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range sc.Nodes {
		cfg := sc.Template
		cfg.Id = id
		cfg.Bus = state.BusCfg{Kind: state.BusMemory}
		opts := core.Options{Bus: broker.Client(id), LogLevel: sc.LogLevel}
		if id == cfg.Gateway {
			opts.Store = &snapshot.Memory{}
		}
		n, err := core.New(cfg, opts)
		if err != nil {
			for _, started := range nodes {
				started.Stop()
			}
			_ = g.Wait()
			return fmt.Errorf("node %s: %w", id, err)
		}
		nodes[id] = n

		events, unregister := n.Listen()
		g.Go(func() error {
			defer unregister()
			for {
				select {
				case ev := <-events:
					if line := describeEvent(ev); line != "" {
						printf("[%s] %s\n", id, line)
					}
				case <-n.Done():
					return nil
				}
			}
		})
		g.Go(n.Run)
		g.Go(func() error {
			<-gctx.Done()
			n.Stop()
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-time.After(sc.Settle):
		case <-gctx.Done():
			return nil
		}
		for _, m := range sc.Messages {
			n, ok := nodes[m.From]
			if !ok {
				return fmt.Errorf("message from unknown node %s", m.From)
			}
			if err := n.Send(m.Body); err != nil {
				printf("[%s] send failed: %v\n", m.From, err)
			}
		}

		select {
		case <-time.After(sc.Duration):
		case <-gctx.Done():
			return nil
		}
		if gw, ok := nodes[sc.Template.Gateway]; ok {
			if info, err := gw.Inspect(); err == nil {
				printf("\n%s", info.Render())
			}
		}
		return errSimDone
	})

	err := g.Wait()
	if errors.Is(err, errSimDone) {
		return nil
	}
	return err
}

var errSimDone = errors.New("simulation finished")

func describeEvent(ev any) string {
	switch e := ev.(type) {
	case core.AdmittedEvent:
		return fmt.Sprintf("linked %s (%s)", e.Neighbour, time.Duration(e.Latency*float64(time.Second)).Round(time.Microsecond))
	case core.DisconnectedEvent:
		return fmt.Sprintf("unlinked %s", e.Neighbour)
	case core.NextHopEvent:
		return fmt.Sprintf("next hop is %s", e.NextHop)
	case core.RoutesEvent:
		return fmt.Sprintf("routes %v", e.Routes)
	case core.DeliveredEvent:
		return fmt.Sprintf("received %q from %s", e.Body, e.Sender)
	case core.ResetEvent:
		return "reset"
	default:
		return ""
	}
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulates a network of nodes in one process",
	Long: `Runs every node on an in-memory broker. Links are given as a-b=delay, messages as from:body and are sent once the network had time to settle.

  strand sim --nodes G,A,B --gateway G --link G-A=5ms --link A-B=5ms --link G-B=40ms --send B:hello`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := simConfig{}
		ids, _ := cmd.Flags().GetStringSlice("nodes")
		for _, id := range ids {
			sc.Nodes = append(sc.Nodes, state.NodeId(id))
		}
		gw, _ := cmd.Flags().GetString("gateway")
		sc.Template.Gateway = state.NodeId(gw)
		alg, _ := cmd.Flags().GetString("algorithm")
		sc.Template.Algorithm = state.Algorithm(alg)
		sc.Template.MaxDegree, _ = cmd.Flags().GetInt("max-degree")
		sc.Template.AnnounceInterval, _ = cmd.Flags().GetDuration("announce")
		sc.Template.SettleDelay = 2 * sc.Template.AnnounceInterval
		sc.Template.ReportInterval = 2 * sc.Template.AnnounceInterval
		sc.Template.NoResetOnMessage, _ = cmd.Flags().GetBool("no-reset")
		sc.LogLevel = slog.LevelWarn
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			sc.LogLevel = slog.LevelDebug
		}

		links, _ := cmd.Flags().GetStringArray("link")
		for _, l := range links {
			link, err := parseSimLink(l)
			if err != nil {
				return err
			}
			sc.Links = append(sc.Links, link)
		}
		msgs, _ := cmd.Flags().GetStringArray("send")
		for _, m := range msgs {
			msg, err := parseSimMessage(m)
			if err != nil {
				return err
			}
			sc.Messages = append(sc.Messages, msg)
		}
		sc.Settle, _ = cmd.Flags().GetDuration("settle")
		sc.Duration, _ = cmd.Flags().GetDuration("duration")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runSim(ctx, sc, os.Stdout)
	},
	GroupID: "strand",
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().StringSlice("nodes", []string{"G", "A", "B"}, "node ids")
	simCmd.Flags().StringP("gateway", "g", "G", "gateway id")
	simCmd.Flags().StringP("algorithm", "a", string(state.DefaultAlgorithm), "dijkstra or bellman_ford")
	simCmd.Flags().Int("max-degree", state.DefaultMaxDegree, "maximum number of links per node")
	simCmd.Flags().Duration("announce", 200*time.Millisecond, "announce interval")
	simCmd.Flags().StringArray("link", nil, "simulated delay between two nodes, a-b=delay")
	simCmd.Flags().StringArray("send", nil, "message to send once settled, from:body")
	simCmd.Flags().Duration("settle", 3*time.Second, "time to wait before sending messages")
	simCmd.Flags().Duration("duration", 2*time.Second, "time to run after sending messages")
	simCmd.Flags().Bool("no-reset", false, "keep the topology after the gateway receives a message")
	simCmd.Flags().BoolP("verbose", "v", false, "print node logs")
}
