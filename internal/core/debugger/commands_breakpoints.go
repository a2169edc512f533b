package debugger

import "github.com/google/go-dap"

// SetBreakpointsCommand replaces the full set of breakpoints for one
// source file in a single round trip, per DAP's set-semantics (the
// adapter drops any breakpoint not present in Lines/Breakpoints). The
// breakpoint store (breakpoints.go) is responsible for always sending
// the complete current set, never a delta.
type SetBreakpointsCommand struct {
	SourcePath  string
	Breakpoints []dap.SourceBreakpoint
}

func NewSetBreakpointsCommand(sourcePath string, bps []dap.SourceBreakpoint) *SetBreakpointsCommand {
	return &SetBreakpointsCommand{SourcePath: sourcePath, Breakpoints: bps}
}

func (c *SetBreakpointsCommand) Name() string   { return "setBreakpoints" }
func (c *SetBreakpointsCommand) Cacheable() bool { return false }
func (c *SetBreakpointsCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *SetBreakpointsCommand) Supported(Capabilities) bool { return true }

func (c *SetBreakpointsCommand) BuildRequest(seq int) dap.Message {
	return &dap.SetBreakpointsRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: c.SourcePath},
			Breakpoints: c.Breakpoints,
		},
	}
}

func (c *SetBreakpointsCommand) DecodeResponse(resp *dap.Response) ([]dap.Breakpoint, error) {
	var body struct {
		Breakpoints []dap.Breakpoint `json:"breakpoints"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Breakpoints, nil
}
