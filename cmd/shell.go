package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/encodeous/strand/core"
)

const shellPrompt = "Enter a command (send <message> / show / leave / reset / exit): "

// runShell reads commands until exit, leave or the end of input
func runShell(n *core.Node, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for {
		select {
		case <-n.Done():
			return
		default:
		}
		fmt.Fprint(out, shellPrompt)
		if !sc.Scan() {
			return
		}
		res, err := core.Execute(n, sc.Text())
		fmt.Fprint(out, res)
		if errors.Is(err, core.ErrExit) {
			return
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}
