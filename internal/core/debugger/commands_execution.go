package debugger

import "github.com/google/go-dap"

// ContinueResult reports whether the adapter resumed every thread or
// only the one requested (§4.8's continued-event/response duality:
// whichever signal arrives first sets running state, idempotently).
type ContinueResult struct {
	AllThreadsContinued bool
}

type ContinueCommand struct {
	ThreadID     ThreadId
	SingleThread bool
}

func NewContinueCommand(threadID ThreadId) *ContinueCommand {
	return &ContinueCommand{ThreadID: threadID, SingleThread: true}
}

func (c *ContinueCommand) Name() string       { return "continue" }
func (c *ContinueCommand) Cacheable() bool     { return false }
func (c *ContinueCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *ContinueCommand) Supported(Capabilities) bool { return true }

func (c *ContinueCommand) BuildRequest(seq int) dap.Message {
	return &dap.ContinueRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.ContinueArguments{
			ThreadId:     int(c.ThreadID),
			SingleThread: c.SingleThread,
		},
	}
}

func (c *ContinueCommand) DecodeResponse(resp *dap.Response) (ContinueResult, error) {
	var body struct {
		AllThreadsContinued bool `json:"allThreadsContinued"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return ContinueResult{}, err
	}
	return ContinueResult{AllThreadsContinued: body.AllThreadsContinued}, nil
}

// steppingArgs carries the fields common to every stepping command.
// Granularity should only ever be set by a caller that already
// checked CapSteppingGranularity (client.go's steppingGranularity does
// this); leaving it empty lets the adapter fall back to its default
// (statement) granularity.
type steppingArgs struct {
	ThreadID     ThreadId
	SingleThread bool
	Granularity  string
}

func (s steppingArgs) dapArguments() dap.SteppingArguments {
	return dap.SteppingArguments{ThreadId: int(s.ThreadID), SingleThread: s.SingleThread, Granularity: s.Granularity}
}

type NextCommand struct{ steppingArgs }

func NewNextCommand(threadID ThreadId, granularity string) *NextCommand {
	return &NextCommand{steppingArgs{ThreadID: threadID, SingleThread: true, Granularity: granularity}}
}
func (c *NextCommand) Name() string       { return "next" }
func (c *NextCommand) Cacheable() bool     { return false }
func (c *NextCommand) Key() RequestKey     { return hashArgs(c.Name(), c.steppingArgs) }
func (c *NextCommand) Supported(Capabilities) bool { return true }
func (c *NextCommand) BuildRequest(seq int) dap.Message {
	return &dap.NextRequest{Request: newRequest(seq, c.Name()), Arguments: c.dapArguments()}
}
func (c *NextCommand) DecodeResponse(resp *dap.Response) (struct{}, error) { return struct{}{}, nil }

type StepInCommand struct{ steppingArgs }

func NewStepInCommand(threadID ThreadId, granularity string) *StepInCommand {
	return &StepInCommand{steppingArgs{ThreadID: threadID, SingleThread: true, Granularity: granularity}}
}
func (c *StepInCommand) Name() string       { return "stepIn" }
func (c *StepInCommand) Cacheable() bool     { return false }
func (c *StepInCommand) Key() RequestKey     { return hashArgs(c.Name(), c.steppingArgs) }
func (c *StepInCommand) Supported(Capabilities) bool { return true }
func (c *StepInCommand) BuildRequest(seq int) dap.Message {
	return &dap.StepInRequest{Request: newRequest(seq, c.Name()), Arguments: dap.StepInArguments{
		ThreadId: int(c.ThreadID), SingleThread: c.SingleThread, Granularity: c.Granularity,
	}}
}
func (c *StepInCommand) DecodeResponse(resp *dap.Response) (struct{}, error) { return struct{}{}, nil }

type StepOutCommand struct{ steppingArgs }

func NewStepOutCommand(threadID ThreadId, granularity string) *StepOutCommand {
	return &StepOutCommand{steppingArgs{ThreadID: threadID, SingleThread: true, Granularity: granularity}}
}
func (c *StepOutCommand) Name() string       { return "stepOut" }
func (c *StepOutCommand) Cacheable() bool     { return false }
func (c *StepOutCommand) Key() RequestKey     { return hashArgs(c.Name(), c.steppingArgs) }
func (c *StepOutCommand) Supported(Capabilities) bool { return true }
func (c *StepOutCommand) BuildRequest(seq int) dap.Message {
	return &dap.StepOutRequest{Request: newRequest(seq, c.Name()), Arguments: dap.StepOutArguments{
		ThreadId: int(c.ThreadID), SingleThread: c.SingleThread, Granularity: c.Granularity,
	}}
}
func (c *StepOutCommand) DecodeResponse(resp *dap.Response) (struct{}, error) { return struct{}{}, nil }

// StepBackCommand is only supported when the adapter advertises
// CapStepBack; without it, dispatch fails with ErrUnsupported before
// any request is sent.
type StepBackCommand struct{ steppingArgs }

func NewStepBackCommand(threadID ThreadId, granularity string) *StepBackCommand {
	return &StepBackCommand{steppingArgs{ThreadID: threadID, SingleThread: true, Granularity: granularity}}
}
func (c *StepBackCommand) Name() string   { return "stepBack" }
func (c *StepBackCommand) Cacheable() bool { return false }
func (c *StepBackCommand) Key() RequestKey { return hashArgs(c.Name(), c.steppingArgs) }
func (c *StepBackCommand) Supported(caps Capabilities) bool { return caps.Supports(CapStepBack) }
func (c *StepBackCommand) BuildRequest(seq int) dap.Message {
	return &dap.StepBackRequest{Request: newRequest(seq, c.Name()), Arguments: dap.SteppingArguments{
		ThreadId: int(c.ThreadID), SingleThread: c.SingleThread, Granularity: c.Granularity,
	}}
}
func (c *StepBackCommand) DecodeResponse(resp *dap.Response) (struct{}, error) { return struct{}{}, nil }

// PauseCommand interrupts a running thread. It is not rate limited
// (ratelimit.go) the way Continue/stepping are, since it is the only
// way to recover from a runaway debuggee.
type PauseCommand struct {
	ThreadID ThreadId
}

func NewPauseCommand(threadID ThreadId) *PauseCommand { return &PauseCommand{ThreadID: threadID} }
func (c *PauseCommand) Name() string       { return "pause" }
func (c *PauseCommand) Cacheable() bool     { return false }
func (c *PauseCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *PauseCommand) Supported(Capabilities) bool { return true }
func (c *PauseCommand) BuildRequest(seq int) dap.Message {
	return &dap.PauseRequest{Request: newRequest(seq, c.Name()), Arguments: dap.PauseArguments{ThreadId: int(c.ThreadID)}}
}
func (c *PauseCommand) DecodeResponse(resp *dap.Response) (struct{}, error) { return struct{}{}, nil }

type TerminateThreadsCommand struct {
	ThreadIDs []ThreadId
}

func NewTerminateThreadsCommand(ids []ThreadId) *TerminateThreadsCommand {
	return &TerminateThreadsCommand{ThreadIDs: ids}
}
func (c *TerminateThreadsCommand) Name() string   { return "terminateThreads" }
func (c *TerminateThreadsCommand) Cacheable() bool { return false }
func (c *TerminateThreadsCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *TerminateThreadsCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapTerminateThreadsRequest)
}
func (c *TerminateThreadsCommand) BuildRequest(seq int) dap.Message {
	ids := make([]int, len(c.ThreadIDs))
	for i, id := range c.ThreadIDs {
		ids[i] = int(id)
	}
	return &dap.TerminateThreadsRequest{
		Request:   newRequest(seq, c.Name()),
		Arguments: dap.TerminateThreadsArguments{ThreadIds: ids},
	}
}
func (c *TerminateThreadsCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

// RestartFrameCommand reruns execution from an earlier stack frame.
// DAP does not define a dedicated capability flag for it; adapters
// that don't support it respond with success=false, surfaced as an
// AdapterError the usual way.
type RestartFrameCommand struct {
	FrameID StackFrameId
}

func NewRestartFrameCommand(frameID StackFrameId) *RestartFrameCommand {
	return &RestartFrameCommand{FrameID: frameID}
}
func (c *RestartFrameCommand) Name() string       { return "restartFrame" }
func (c *RestartFrameCommand) Cacheable() bool     { return false }
func (c *RestartFrameCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *RestartFrameCommand) Supported(Capabilities) bool { return true }
func (c *RestartFrameCommand) BuildRequest(seq int) dap.Message {
	return &dap.RestartFrameRequest{
		Request:   newRequest(seq, c.Name()),
		Arguments: dap.RestartFrameArguments{FrameId: int(c.FrameID)},
	}
}
func (c *RestartFrameCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}
