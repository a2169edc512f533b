package debugger

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/creack/pty"
)

// NewStdioPTYTransport spawns bin the same way NewStdioTransport does,
// but gives it a controlling pseudo-terminal instead of plain pipes,
// mirroring internal/core/process.Manager.startWithPTY. Some adapters
// (notably lldb-dap) expect a TTY so that signals like SIGINT reach the
// debuggee the way a shell would deliver them; Configuration.Kind
// selects this variant through the adapter registry (§2) rather than
// every caller choosing it by hand.
func NewStdioPTYTransport(bin Binary) Transport {
	return newProcessTransport("stdio+pty", func(ctx context.Context) (io.WriteCloser, io.Reader, io.Reader, io.Reader, func() error, error) {
		cmd := exec.CommandContext(ctx, bin.Command, bin.Args...)
		cmd.Dir = bin.Cwd
		cmd.Env = buildEnv(bin.Envs)

		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("dap: starting adapter under pty: %w", err)
		}

		kill := func() error {
			err := ptmx.Close()
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
				_, _ = cmd.Process.Wait()
			}
			return err
		}

		// A PTY is a single full-duplex fd: reads and writes share it,
		// and there is no separate stderr stream to drain.
		return ptmx, ptmx, nil, nil, kill, nil
	})
}
