package debugger

import "github.com/google/go-dap"

// ThreadsCommand lists the debuggee's current threads. It is
// cacheable: repeated calls between stop events return the same
// result without round-tripping to the adapter (§4.4 cache rules).
type ThreadsCommand struct{}

func NewThreadsCommand() *ThreadsCommand { return &ThreadsCommand{} }
func (c *ThreadsCommand) Name() string   { return "threads" }
func (c *ThreadsCommand) Cacheable() bool { return true }
func (c *ThreadsCommand) Key() RequestKey { return hashArgs(c.Name(), nil) }
func (c *ThreadsCommand) Supported(Capabilities) bool { return true }
func (c *ThreadsCommand) BuildRequest(seq int) dap.Message {
	return &dap.ThreadsRequest{Request: newRequest(seq, c.Name())}
}
func (c *ThreadsCommand) DecodeResponse(resp *dap.Response) ([]dap.Thread, error) {
	var body struct {
		Threads []dap.Thread `json:"threads"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Threads, nil
}

type StackTraceCommand struct {
	ThreadID   ThreadId
	StartFrame int
	Levels     int
}

func NewStackTraceCommand(threadID ThreadId) *StackTraceCommand {
	return &StackTraceCommand{ThreadID: threadID}
}
func (c *StackTraceCommand) Name() string   { return "stackTrace" }
func (c *StackTraceCommand) Cacheable() bool { return true }
func (c *StackTraceCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *StackTraceCommand) Supported(Capabilities) bool { return true }
func (c *StackTraceCommand) BuildRequest(seq int) dap.Message {
	return &dap.StackTraceRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.StackTraceArguments{
			ThreadId:   int(c.ThreadID),
			StartFrame: c.StartFrame,
			Levels:     c.Levels,
		},
	}
}
func (c *StackTraceCommand) DecodeResponse(resp *dap.Response) ([]dap.StackFrame, error) {
	var body struct {
		StackFrames []dap.StackFrame `json:"stackFrames"`
		TotalFrames int              `json:"totalFrames"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.StackFrames, nil
}

type ScopesCommand struct {
	FrameID StackFrameId
}

func NewScopesCommand(frameID StackFrameId) *ScopesCommand { return &ScopesCommand{FrameID: frameID} }
func (c *ScopesCommand) Name() string   { return "scopes" }
func (c *ScopesCommand) Cacheable() bool { return true }
func (c *ScopesCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *ScopesCommand) Supported(Capabilities) bool { return true }
func (c *ScopesCommand) BuildRequest(seq int) dap.Message {
	return &dap.ScopesRequest{Request: newRequest(seq, c.Name()), Arguments: dap.ScopesArguments{FrameId: int(c.FrameID)}}
}
func (c *ScopesCommand) DecodeResponse(resp *dap.Response) ([]dap.Scope, error) {
	var body struct {
		Scopes []dap.Scope `json:"scopes"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Scopes, nil
}

type VariablesCommand struct {
	VariablesReference VariableReference
	Start              int
	Count              int
}

func NewVariablesCommand(ref VariableReference) *VariablesCommand {
	return &VariablesCommand{VariablesReference: ref}
}
func (c *VariablesCommand) Name() string   { return "variables" }
func (c *VariablesCommand) Cacheable() bool { return true }
func (c *VariablesCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *VariablesCommand) Supported(Capabilities) bool { return true }
func (c *VariablesCommand) BuildRequest(seq int) dap.Message {
	return &dap.VariablesRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.VariablesArguments{
			VariablesReference: int(c.VariablesReference),
			Start:              c.Start,
			Count:              c.Count,
		},
	}
}
func (c *VariablesCommand) DecodeResponse(resp *dap.Response) ([]dap.Variable, error) {
	var body struct {
		Variables []dap.Variable `json:"variables"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Variables, nil
}

// SetVariableResult mirrors the subset of a setVariable response the
// client needs to refresh its variable cache entry in place.
type SetVariableResult struct {
	Value              string
	Type               string
	VariablesReference VariableReference
}

// SetVariableCommand is never cacheable — it mutates debuggee state —
// and its success clears the client's entire request cache
// (Client.SetVariable in client.go).
type SetVariableCommand struct {
	VariablesReference VariableReference
	Name               string
	Value              string
}

func NewSetVariableCommand(ref VariableReference, name, value string) *SetVariableCommand {
	return &SetVariableCommand{VariablesReference: ref, Name: name, Value: value}
}

func (c *SetVariableCommand) Name() string   { return "setVariable" }
func (c *SetVariableCommand) Cacheable() bool { return false }
func (c *SetVariableCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *SetVariableCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapSetVariable)
}
func (c *SetVariableCommand) BuildRequest(seq int) dap.Message {
	return &dap.SetVariableRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.SetVariableArguments{
			VariablesReference: int(c.VariablesReference),
			Name:               c.Name,
			Value:              c.Value,
		},
	}
}
func (c *SetVariableCommand) DecodeResponse(resp *dap.Response) (SetVariableResult, error) {
	var body struct {
		Value              string `json:"value"`
		Type               string `json:"type"`
		VariablesReference int    `json:"variablesReference"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return SetVariableResult{}, err
	}
	return SetVariableResult{
		Value:              body.Value,
		Type:               body.Type,
		VariablesReference: VariableReference(body.VariablesReference),
	}, nil
}

type ModulesCommand struct {
	StartModule int
	ModuleCount int
}

func NewModulesCommand() *ModulesCommand { return &ModulesCommand{} }
func (c *ModulesCommand) Name() string   { return "modules" }
func (c *ModulesCommand) Cacheable() bool { return true }
func (c *ModulesCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *ModulesCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapModulesRequest)
}
func (c *ModulesCommand) BuildRequest(seq int) dap.Message {
	return &dap.ModulesRequest{
		Request:   newRequest(seq, c.Name()),
		Arguments: dap.ModulesArguments{StartModule: c.StartModule, ModuleCount: c.ModuleCount},
	}
}
func (c *ModulesCommand) DecodeResponse(resp *dap.Response) ([]dap.Module, error) {
	var body struct {
		Modules []dap.Module `json:"modules"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Modules, nil
}

type LoadedSourcesCommand struct{}

func NewLoadedSourcesCommand() *LoadedSourcesCommand { return &LoadedSourcesCommand{} }
func (c *LoadedSourcesCommand) Name() string   { return "loadedSources" }
func (c *LoadedSourcesCommand) Cacheable() bool { return true }
func (c *LoadedSourcesCommand) Key() RequestKey { return hashArgs(c.Name(), nil) }
func (c *LoadedSourcesCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapLoadedSourcesRequest)
}
func (c *LoadedSourcesCommand) BuildRequest(seq int) dap.Message {
	return &dap.LoadedSourcesRequest{Request: newRequest(seq, c.Name())}
}
func (c *LoadedSourcesCommand) DecodeResponse(resp *dap.Response) ([]dap.Source, error) {
	var body struct {
		Sources []dap.Source `json:"sources"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Sources, nil
}

type CompletionsCommand struct {
	FrameID StackFrameId
	Text    string
	Column  int
}

func NewCompletionsCommand(frameID StackFrameId, text string, column int) *CompletionsCommand {
	return &CompletionsCommand{FrameID: frameID, Text: text, Column: column}
}
func (c *CompletionsCommand) Name() string   { return "completions" }
func (c *CompletionsCommand) Cacheable() bool { return true }
func (c *CompletionsCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *CompletionsCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapCompletionsRequest)
}
func (c *CompletionsCommand) BuildRequest(seq int) dap.Message {
	return &dap.CompletionsRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.CompletionsArguments{
			FrameId: int(c.FrameID),
			Text:    c.Text,
			Column:  c.Column,
		},
	}
}
func (c *CompletionsCommand) DecodeResponse(resp *dap.Response) ([]dap.CompletionItem, error) {
	var body struct {
		Targets []dap.CompletionItem `json:"targets"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return nil, err
	}
	return body.Targets, nil
}

// EvaluateResult mirrors the fields callers of Evaluate actually need;
// the full DAP body has a few more formatting-hint fields this core
// doesn't surface.
type EvaluateResult struct {
	Result             string
	Type               string
	VariablesReference VariableReference
}

// EvaluateCommand is cacheable when its context is "hover" or
// "watch" (repeated identical hovers over unchanged state should not
// re-evaluate); a "repl" context evaluation may have side effects and
// is never cached (NewEvaluateCommand only marks the command cacheable
// for those two contexts).
type EvaluateCommand struct {
	Expression string
	FrameID    StackFrameId
	Context    string
	cacheable  bool
}

func NewEvaluateCommand(expr string, frameID StackFrameId, evalContext string) *EvaluateCommand {
	cacheable := evalContext == "hover" || evalContext == "watch"
	return &EvaluateCommand{Expression: expr, FrameID: frameID, Context: evalContext, cacheable: cacheable}
}
func (c *EvaluateCommand) Name() string   { return "evaluate" }
func (c *EvaluateCommand) Cacheable() bool { return c.cacheable }
func (c *EvaluateCommand) Key() RequestKey { return hashArgs(c.Name(), c) }
func (c *EvaluateCommand) Supported(caps Capabilities) bool {
	if c.Context == "hover" {
		return caps.Supports(CapEvaluateForHovers)
	}
	return true
}
func (c *EvaluateCommand) BuildRequest(seq int) dap.Message {
	return &dap.EvaluateRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.EvaluateArguments{
			Expression: c.Expression,
			FrameId:    int(c.FrameID),
			Context:    c.Context,
		},
	}
}
func (c *EvaluateCommand) DecodeResponse(resp *dap.Response) (EvaluateResult, error) {
	var body struct {
		Result             string `json:"result"`
		Type               string `json:"type"`
		VariablesReference int    `json:"variablesReference"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{
		Result:             body.Result,
		Type:               body.Type,
		VariablesReference: VariableReference(body.VariablesReference),
	}, nil
}
