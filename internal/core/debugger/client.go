package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/go-dap"

	"github.com/caboose-desktop/dapcore/internal/core/debugger/proto"
)

// Client is one adapter connection: either a local Transport+router
// pair, or a remoteBridge forwarding everything to a collaboration
// peer (§4.5, §4.9). Callers never need to know which — every command
// method below dispatches through the same generic path.
type Client struct {
	ID        ClientId
	SessionID SessionId

	transport Transport // nil in remote mode
	router    *router   // nil in remote mode
	bridge    *remoteBridge // nil in local mode

	cache     *requestCache
	rateLimit *execRateLimiter
	state     *clientState

	mu           sync.RWMutex
	capabilities Capabilities
	running      runState
}

// runState tracks which threads are currently running, maintained
// idempotently from either a `continued` event or a Continue
// response's AllThreadsContinued flag — whichever arrives first
// (§4.8, Open Question resolved in DESIGN.md).
type runState struct {
	allRunning bool
	byThread   map[ThreadId]bool
}

// NewLocalClient wires a Client to an already-started local Transport.
// onEvent receives every inbound event/reverse-request; session.go
// supplies the event dispatcher (events.go) here.
func NewLocalClient(sessionID SessionId, t Transport, onEvent func(dap.Message)) *Client {
	cl := &Client{
		ID:        nextClientId(),
		SessionID: sessionID,
		transport: t,
		cache:     newRequestCache(),
		rateLimit: newExecRateLimiter(),
		state:     newClientState(),
		running:   runState{byThread: make(map[ThreadId]bool)},
	}
	cl.router = newRouter(t, onEvent)
	go cl.router.run()
	return cl
}

// NewRemoteClient wires a Client to forward every command to peer
// instead of a local adapter. onEvent receives events translated back
// into go-dap's typed event structs (decodeRemoteEvent), so session.go
// and events.go never need a remote-specific code path.
func NewRemoteClient(ctx context.Context, sessionID SessionId, peer Peer, onEvent func(dap.Message)) *Client {
	cl := &Client{
		ID:        nextClientId(),
		SessionID: sessionID,
		cache:     newRequestCache(),
		rateLimit: newExecRateLimiter(),
		state:     newClientState(),
		running:   runState{byThread: make(map[ThreadId]bool)},
	}
	cl.bridge = newRemoteBridge(peer, sessionID, cl.ID, func(env proto.Envelope) {
		msg, err := decodeRemoteEvent(env)
		if err != nil {
			slog.Warn("dap: undecodable remote event", "command", env.Command, "error", err)
			return
		}
		onEvent(msg)
	})
	go cl.bridge.run(ctx)
	return cl
}

func (cl *Client) Capabilities() Capabilities {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.capabilities
}

func (cl *Client) setCapabilities(caps Capabilities) {
	cl.mu.Lock()
	cl.capabilities = caps
	cl.mu.Unlock()
}

// mergeCapabilities applies an additive `capabilities` event update
// (§4.8).
func (cl *Client) mergeCapabilities(update Capabilities) {
	cl.mu.Lock()
	cl.capabilities.Merge(update)
	cl.mu.Unlock()
}

// setRunning and setAllRunning are idempotent: calling either twice,
// or both for the same transition, leaves state correct. This is what
// lets `continued` events and a Continue response's
// AllThreadsContinued both drive running state without a data race or
// double-toggle (DESIGN.md Open Question).
func (cl *Client) setRunning(id ThreadId) {
	cl.mu.Lock()
	cl.running.byThread[id] = true
	cl.mu.Unlock()
}

func (cl *Client) setAllRunning() {
	cl.mu.Lock()
	cl.running.allRunning = true
	cl.running.byThread = make(map[ThreadId]bool)
	cl.mu.Unlock()
}

func (cl *Client) setStopped(id ThreadId) {
	cl.mu.Lock()
	cl.running.allRunning = false
	delete(cl.running.byThread, id)
	cl.mu.Unlock()
}

// setAllStopped clears running state entirely, used for an
// all-threads-stopped `stopped` event and for `exited`.
func (cl *Client) setAllStopped() {
	cl.mu.Lock()
	cl.running.allRunning = false
	cl.running.byThread = make(map[ThreadId]bool)
	cl.mu.Unlock()
}

// Close tears down this client's transport or remote bridge. Requests
// pending in the router or the bridge fail with ErrAdapterGone; callers
// waiting on a request-cache entry get ErrCancelled.
func (cl *Client) Close() error {
	cl.cache.invalidateAll()
	cl.state.clear()
	if cl.bridge != nil {
		cl.bridge.shutdown()
	}
	if cl.transport != nil {
		return cl.transport.Kill()
	}
	return nil
}

// dispatch is the single entry point every exported command method
// below funnels through: check capability support, then either join
// the request cache (cacheable commands) or round-trip directly.
// reduce, when non-nil, is the §4.4 state-mutation step: for a
// cacheable command it runs once per fetch via cachedDispatch; for a
// non-cacheable command it runs once per call, immediately after a
// successful round trip.
func dispatch[R any](ctx context.Context, cl *Client, cmd Command[R], reduce func(R)) (R, error) {
	var zero R
	if !cmd.Supported(cl.Capabilities()) {
		return zero, fmt.Errorf("%s: %w", cmd.Name(), ErrUnsupported)
	}

	fetch := func(fctx context.Context) (R, error) {
		return roundTrip(fctx, cl, cmd)
	}
	if cmd.Cacheable() {
		return cachedDispatch(ctx, cl.cache, cmd.Key(), cmd.Name(), fetch, reduce)
	}
	result, err := fetch(ctx)
	if err == nil && reduce != nil {
		reduce(result)
	}
	return result, err
}

// roundTrip sends cmd to the adapter (local or remote) and decodes its
// response; DecodeResponse runs identically either way because the
// remote path synthesizes the same *dap.Response shape a local
// round-trip would have produced.
func roundTrip[R any](ctx context.Context, cl *Client, cmd Command[R]) (R, error) {
	var zero R
	var resp *dap.Response

	if cl.bridge != nil {
		payload, err := commandPayload(cmd)
		if err != nil {
			return zero, err
		}
		env, err := cl.bridge.request(ctx, cmd.Name(), payload)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		resp = syntheticResponse(cmd.Name(), env.Success, env.Message, env.Payload)
	} else {
		seq := cl.router.nextSeq()
		var err error
		resp, err = cl.router.request(ctx, seq, cmd.BuildRequest(seq))
		if err != nil {
			return zero, fmt.Errorf("%s: %w", cmd.Name(), err)
		}
	}

	if !resp.Success {
		return zero, adapterErrorFromResponse(cmd.Name(), resp)
	}
	return cmd.DecodeResponse(resp)
}

// decodeRemoteEvent reconstructs a minimal DAP wire message from a
// KindEvent envelope and runs it through the same go-dap decoder a
// local transport uses, so a forwarded `stopped` event decodes into
// the exact same *dap.StoppedEvent type a local one would.
func decodeRemoteEvent(env proto.Envelope) (dap.Message, error) {
	wire := struct {
		Seq   int             `json:"seq"`
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Body  json.RawMessage `json:"body,omitempty"`
	}{Type: "event", Event: env.Command, Body: env.Payload}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return dap.DecodeProtocolMessage(raw)
}

// Initialize must be the first command sent on a fresh client (§4.6).
func (cl *Client) Initialize(ctx context.Context, clientID, clientName, adapterID string) (Capabilities, error) {
	caps, err := dispatch(ctx, cl, NewInitializeCommand(clientID, clientName, adapterID), nil)
	if err != nil {
		return Capabilities{}, err
	}
	cl.setCapabilities(caps)
	return caps, nil
}

func (cl *Client) Launch(ctx context.Context, config json.RawMessage, noDebug bool) error {
	_, err := dispatch(ctx, cl, NewLaunchCommand(config, noDebug), nil)
	return err
}

func (cl *Client) Attach(ctx context.Context, config json.RawMessage) error {
	_, err := dispatch(ctx, cl, NewAttachCommand(config), nil)
	return err
}

func (cl *Client) ConfigurationDone(ctx context.Context) error {
	_, err := dispatch(ctx, cl, NewConfigurationDoneCommand(), nil)
	return err
}

func (cl *Client) SetBreakpoints(ctx context.Context, sourcePath string, bps []dap.SourceBreakpoint) ([]dap.Breakpoint, error) {
	return dispatch(ctx, cl, NewSetBreakpointsCommand(sourcePath, bps), nil)
}

// Threads fetches the debuggee's current threads and aggregates them
// into the client's state tree (§4.5).
func (cl *Client) Threads(ctx context.Context) ([]dap.Thread, error) {
	return dispatch(ctx, cl, NewThreadsCommand(), cl.state.reduceThreads)
}

// StackTrace fetches threadID's stack and replaces its entry in the
// state tree (§4.5: "stack_frames(thread): ... replaces the thread's
// frames").
func (cl *Client) StackTrace(ctx context.Context, threadID ThreadId) ([]dap.StackFrame, error) {
	reduce := func(frames []dap.StackFrame) { cl.state.reduceStackFrames(threadID, frames) }
	return dispatch(ctx, cl, NewStackTraceCommand(threadID), reduce)
}

// Scopes fetches frameID's scopes and stores them "on the named
// frame" (§4.5).
func (cl *Client) Scopes(ctx context.Context, frameID StackFrameId) ([]dap.Scope, error) {
	reduce := func(scopes []dap.Scope) { cl.state.reduceScopes(frameID, scopes) }
	return dispatch(ctx, cl, NewScopesCommand(frameID), reduce)
}

// Variables fetches ref's children and inserts them at that parent
// location in the tree (§4.5).
func (cl *Client) Variables(ctx context.Context, ref VariableReference) ([]dap.Variable, error) {
	reduce := func(vars []dap.Variable) { cl.state.reduceVariables(ref, vars) }
	return dispatch(ctx, cl, NewVariablesCommand(ref), reduce)
}

func (cl *Client) SetVariable(ctx context.Context, ref VariableReference, name, value string) (SetVariableResult, error) {
	result, err := dispatch(ctx, cl, NewSetVariableCommand(ref, name, value), nil)
	if err == nil {
		cl.state.applySetVariable(ref, name, result)
		cl.cache.invalidateAll() // a mutated variable can change any previously cached inspection result
	}
	return result, err
}

// Modules fetches the adapter's known modules, merging them into the
// state tree (§4.5).
func (cl *Client) Modules(ctx context.Context) ([]dap.Module, error) {
	return dispatch(ctx, cl, NewModulesCommand(), cl.state.reduceModules)
}

// LoadedSources fetches the adapter's known loaded sources, merging
// them into the state tree (§4.5).
func (cl *Client) LoadedSources(ctx context.Context) ([]dap.Source, error) {
	return dispatch(ctx, cl, NewLoadedSourcesCommand(), cl.state.reduceLoadedSources)
}

func (cl *Client) Completions(ctx context.Context, frameID StackFrameId, text string, column int) ([]dap.CompletionItem, error) {
	return dispatch(ctx, cl, NewCompletionsCommand(frameID, text, column), nil)
}

func (cl *Client) Evaluate(ctx context.Context, expr string, frameID StackFrameId, evalContext string) (EvaluateResult, error) {
	return dispatch(ctx, cl, NewEvaluateCommand(expr, frameID, evalContext), nil)
}

// KnownThreads, KnownStackFrames, KnownScopes, KnownVariables,
// KnownModules and KnownLoadedSources are the read accessors §4.5
// requires over the aggregated tree the methods above populate. They
// never round-trip to the adapter; an embedder calls the fetch method
// first (or relies on one having already run) and reads the result
// back through these at display time.
func (cl *Client) KnownThreads() []dap.Thread                    { return cl.state.Threads() }
func (cl *Client) KnownStackFrames(id ThreadId) []dap.StackFrame { return cl.state.StackFrames(id) }
func (cl *Client) KnownScopes(frame StackFrameId) []dap.Scope    { return cl.state.Scopes(frame) }
func (cl *Client) KnownVariables(ref VariableReference) []dap.Variable {
	return cl.state.Variables(ref)
}
func (cl *Client) KnownModules() []dap.Module       { return cl.state.Modules() }
func (cl *Client) KnownLoadedSources() []dap.Source { return cl.state.LoadedSources() }

// steppingGranularity elides granularity when the adapter never
// advertised CapSteppingGranularity (§4.5: "consult capabilities for
// supports_stepping_granularity ... elide granularity ... if
// unsupported"), regardless of what the caller asked for.
func steppingGranularity(caps Capabilities, requested string) string {
	if !caps.Supports(CapSteppingGranularity) {
		return ""
	}
	return requested
}

// Continue, Next, StepIn, StepOut and StepBack are rate limited: a
// burst past the configured flood guard returns ErrRateLimited
// immediately rather than one of these requests being silently dropped
// or queued out of order (ratelimit.go). Pause is not rate limited.
func (cl *Client) Continue(ctx context.Context, threadID ThreadId) (ContinueResult, error) {
	if !cl.rateLimit.allow() {
		return ContinueResult{}, ErrRateLimited
	}
	result, err := dispatch(ctx, cl, NewContinueCommand(threadID), nil)
	if err == nil {
		if result.AllThreadsContinued {
			cl.setAllRunning()
		} else {
			cl.setRunning(threadID)
		}
		cl.cache.invalidateAll()
	}
	return result, err
}

// Next, StepIn, StepOut and StepBack never mutate running state
// themselves (§4.5: "status is reconciled by subsequent events") — the
// thread stays whatever it was until a `stopped` or `continued` event
// says otherwise, which is also what clears the request cache.
func (cl *Client) Next(ctx context.Context, threadID ThreadId, granularity string) error {
	if !cl.rateLimit.allow() {
		return ErrRateLimited
	}
	granularity = steppingGranularity(cl.Capabilities(), granularity)
	_, err := dispatch(ctx, cl, NewNextCommand(threadID, granularity), nil)
	return err
}

func (cl *Client) StepIn(ctx context.Context, threadID ThreadId, granularity string) error {
	if !cl.rateLimit.allow() {
		return ErrRateLimited
	}
	granularity = steppingGranularity(cl.Capabilities(), granularity)
	_, err := dispatch(ctx, cl, NewStepInCommand(threadID, granularity), nil)
	return err
}

func (cl *Client) StepOut(ctx context.Context, threadID ThreadId, granularity string) error {
	if !cl.rateLimit.allow() {
		return ErrRateLimited
	}
	granularity = steppingGranularity(cl.Capabilities(), granularity)
	_, err := dispatch(ctx, cl, NewStepOutCommand(threadID, granularity), nil)
	return err
}

func (cl *Client) StepBack(ctx context.Context, threadID ThreadId, granularity string) error {
	if !cl.rateLimit.allow() {
		return ErrRateLimited
	}
	granularity = steppingGranularity(cl.Capabilities(), granularity)
	_, err := dispatch(ctx, cl, NewStepBackCommand(threadID, granularity), nil)
	return err
}

func (cl *Client) Pause(ctx context.Context, threadID ThreadId) error {
	_, err := dispatch(ctx, cl, NewPauseCommand(threadID), nil)
	return err
}

func (cl *Client) RestartFrame(ctx context.Context, frameID StackFrameId) error {
	_, err := dispatch(ctx, cl, NewRestartFrameCommand(frameID), nil)
	if err == nil {
		cl.cache.invalidateAll()
	}
	return err
}

func (cl *Client) TerminateThreads(ctx context.Context, ids []ThreadId) error {
	_, err := dispatch(ctx, cl, NewTerminateThreadsCommand(ids), nil)
	return err
}

// Restart dispatches Restart when the adapter supports it; otherwise
// it falls through to Disconnect{restart:true, terminate_debuggee:true}
// and lets the outer layer relaunch (§4.5).
func (cl *Client) Restart(ctx context.Context, config json.RawMessage) error {
	var err error
	if cl.Capabilities().Supports(CapRestartRequest) {
		_, err = dispatch(ctx, cl, NewRestartCommand(config), nil)
	} else {
		_, err = dispatch(ctx, cl, &DisconnectCommand{TerminateDebuggee: true, Restart: true}, nil)
	}
	if err == nil {
		cl.cache.invalidateAll()
	}
	return err
}

// Terminate dispatches Terminate when the adapter supports it;
// otherwise it falls through to Disconnect{terminate_debuggee:true}
// (§4.5).
func (cl *Client) Terminate(ctx context.Context, restart bool) error {
	if cl.Capabilities().Supports(CapTerminateRequest) {
		_, err := dispatch(ctx, cl, &TerminateCommand{Restart: restart}, nil)
		return err
	}
	_, err := dispatch(ctx, cl, &DisconnectCommand{TerminateDebuggee: true}, nil)
	return err
}

func (cl *Client) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	_, err := dispatch(ctx, cl, NewDisconnectCommand(terminateDebuggee), nil)
	return err
}
