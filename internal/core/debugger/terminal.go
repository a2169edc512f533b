package debugger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-dap"
)

// TerminalHost is supplied by the embedder (the editor shell) to
// satisfy the adapter's reverse `runInTerminal` request (§4.8, §6): it
// is the only way this core ever spawns a visible terminal, since the
// core itself has no UI.
type TerminalHost interface {
	Spawn(ctx context.Context, cmd string, args []string, envs map[string]string, cwd, title string) (pid int, err error)
}

// handleRunInTerminal always sends exactly one response for the
// reverse request, success or error, even when host is nil or Spawn
// fails — an adapter that never gets a reply for runInTerminal will
// stall indefinitely (§4.8).
func (s *Session) handleRunInTerminal(ctx context.Context, cl *Client, req *dap.RunInTerminalRequest) {
	if s.terminalHost == nil {
		s.respondReverse(ctx, cl, req.Seq, req.Command, false, "no terminal host configured", nil)
		return
	}

	args := req.Arguments
	var cmd string
	var cmdArgs []string
	if len(args.Args) > 0 {
		cmd, cmdArgs = args.Args[0], args.Args[1:]
	}

	pid, err := s.terminalHost.Spawn(ctx, cmd, cmdArgs, args.Env, args.Cwd, args.Title)
	if err != nil {
		s.respondReverse(ctx, cl, req.Seq, req.Command, false, fmt.Sprintf("spawning terminal: %v", err), nil)
		return
	}
	s.respondReverse(ctx, cl, req.Seq, req.Command, true, "", dap.RunInTerminalResponseBody{ProcessId: pid})
}

// handleStartDebugging stubs the reverse `startDebugging` request as
// Unsupported: multi-session launch chains (an adapter asking the
// client to start a second, child debug session) are out of this
// core's scope (§9 Non-goals); the adapter gets a clean rejection
// rather than a stall.
func (s *Session) handleStartDebugging(ctx context.Context, cl *Client, req *dap.StartDebuggingRequest) {
	s.respondReverse(ctx, cl, req.Seq, req.Command, false, ErrUnsupported.Error(), nil)
}

// respondReverse sends a plain dap.Response for a reverse request.
// This bypasses the router's request/response correlation (which only
// tracks requests *this* core initiated) since the sequence id here
// belongs to the adapter's own counter.
func (s *Session) respondReverse(ctx context.Context, cl *Client, requestSeq int, command string, success bool, message string, body any) {
	if cl.transport == nil {
		return // remote-mode clients never receive reverse requests directly; the peer answers them
	}
	resp := &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: cl.router.nextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         success,
		Command:         command,
		Message:         message,
		Body:            body,
	}
	if err := cl.transport.Send(resp); err != nil {
		slog.Warn("dap: failed to answer reverse request", "command", command, "error", err)
	}
}
