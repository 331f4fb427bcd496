package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/encodeous/strand/state"
)

// ErrExit is returned by Execute when the command asks the shell to quit
var ErrExit = errors.New("exit")

// Execute runs one shell command against the node and returns its output
func Execute(n *Node, line string) (string, error) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return "", nil
	case "send":
		if arg == "" {
			return "", errors.New("usage: send <message>")
		}
		if err := n.Send(arg); err != nil {
			return "", err
		}
		info, err := n.Inspect()
		if err != nil {
			return "", err
		}
		if info.IsGateway() {
			return "message delivered locally\n", nil
		}
		return fmt.Sprintf("message sent from %s\n", info.Id), nil
	case "show", "inspect":
		info, err := n.Inspect()
		if err != nil {
			return "", err
		}
		return info.Render(), nil
	case "reset":
		if err := n.Reset(); err != nil {
			return "", err
		}
		return "connections reset\n", nil
	case "leave":
		if err := n.Leave(); err != nil {
			return "", err
		}
		return "left the network\n", ErrExit
	case "exit", "quit":
		return "", ErrExit
	default:
		return "", fmt.Errorf("unknown command %q, expected send <message>, show, reset, leave or exit", cmd)
	}
}

// ServeIPC accepts control connections on a unix socket until ctx is done. Each connection carries
// one command line and receives the output terminated by a zero byte.
func ServeIPC(ctx context.Context, n *Node, path string, log *slog.Logger) error {
	_ = os.Remove(path)
	l, err := (&net.ListenConfig{}).Listen(ctx, "unix", path)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	defer os.Remove(path)

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(state.DefaultInspectTimeout))
			if err := handleIPC(n, bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))); err != nil {
				log.Debug("ipc request failed", "error", err)
			}
		}()
	}
}

func handleIPC(n *Node, rw *bufio.ReadWriter) error {
	line, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	out, err := Execute(n, line)
	switch {
	case errors.Is(err, ErrExit) && out == "":
		out = "exit only closes the interactive shell, use leave to stop the node\n"
	case err != nil && !errors.Is(err, ErrExit):
		out = "error: " + err.Error() + "\n"
	}
	if _, werr := rw.WriteString(out); werr != nil {
		return werr
	}
	if werr := rw.WriteByte(0); werr != nil {
		return werr
	}
	return rw.Flush()
}

// IPCGet sends one command to the node listening on path
func IPCGet(path string, command string) (string, error) {
	conn, err := net.DialTimeout("unix", path, state.DefaultInspectTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(state.DefaultInspectTimeout))
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString(command + "\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}
