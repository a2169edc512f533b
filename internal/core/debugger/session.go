package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/go-dap"
	"github.com/google/uuid"

	"github.com/caboose-desktop/dapcore/internal/core/debugger/adapters"
)

// Mode records whether a Session's clients talk to a local adapter or
// forward through the collaboration bridge to a remote peer (§4.6).
type Mode int

const (
	ModeLocal Mode = iota
	ModeRemote
)

// Configuration is the debug session configuration recognized from
// §6: everything adapter-specific beyond Program/Cwd passes through
// Extra opaquely.
type Configuration struct {
	Label   string
	Request string // "launch" or "attach"
	Program string
	Cwd     string
	Kind    string // adapter kind name resolved via adapters.Registry (an explicit Command bypasses it)
	Command string // explicit binary override; wins over the registry
	Args    []string
	Env     map[string]string
	Extra   json.RawMessage // adapter-specific launch/attach fields, passed through opaquely
}

// buildArguments merges Program/Cwd under the request's base fields,
// then lets Extra's fields win on conflict, since Extra is the user's
// explicit override (§6: "embedded in request args unless user
// overrides").
func (c Configuration) buildArguments() json.RawMessage {
	base := map[string]json.RawMessage{}
	if c.Program != "" {
		if raw, err := json.Marshal(c.Program); err == nil {
			base["program"] = raw
		}
	}
	if c.Cwd != "" {
		if raw, err := json.Marshal(c.Cwd); err == nil {
			base["cwd"] = raw
		}
	}
	var extra map[string]json.RawMessage
	if len(c.Extra) > 0 {
		_ = json.Unmarshal(c.Extra, &extra)
	}
	for k, v := range extra {
		base[k] = v
	}
	raw, _ := json.Marshal(base)
	return raw
}

// resolveBinary turns Configuration.Kind (or an explicit Command) into
// a Binary and a transport kind string ("stdio", "stdio+pty", "tcp").
func (c Configuration) resolveBinary(registry *adapters.Registry) (Binary, string, error) {
	if c.Command != "" {
		return Binary{Command: c.Command, Args: c.Args, Cwd: c.Cwd, Envs: c.Env}, "stdio", nil
	}
	if registry == nil {
		return Binary{}, "", fmt.Errorf("dap: configuration has no command and no adapter registry is configured")
	}
	entry, ok := registry.Lookup(c.Kind)
	if !ok {
		return Binary{}, "", fmt.Errorf("dap: unknown adapter kind %q", c.Kind)
	}
	transport := entry.Transport
	if transport == "" {
		transport = "stdio"
	}
	envs := entry.Env
	if len(c.Env) > 0 {
		envs = mergeEnv(entry.Env, c.Env)
	}
	return Binary{Command: entry.Command, Args: entry.Args, Cwd: c.Cwd, Envs: envs}, transport, nil
}

func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// SessionFailedError wraps the originating error from a handshake step
// that failed (§4.6): the session transitions to Failed and the
// adapter process is killed.
type SessionFailedError struct {
	Step string
	Err  error
}

func (e *SessionFailedError) Error() string { return fmt.Sprintf("dap: session failed at %s: %v", e.Step, e.Err) }
func (e *SessionFailedError) Unwrap() error  { return e.Err }

// Session groups one or more clients under a shared configuration and
// user toggles (§4.6), and outlives individual client restarts.
type Session struct {
	ID   SessionId
	Mode Mode

	registry     *adapters.Registry
	terminalHost TerminalHost

	Breakpoints *BreakpointStore

	mu         sync.RWMutex
	config     Configuration
	clients    map[ClientId]*Client
	handshakes map[ClientId]chan struct{}
	failed     error

	eventsMu sync.RWMutex
	eventSubs map[uuid.UUID]func(Event)
}

// NewSession constructs an empty local-mode session. terminalHost may
// be nil if the embedder has no UI-facing terminal (every
// runInTerminal request is then answered with an error, per §4.8).
func NewSession(config Configuration, registry *adapters.Registry, terminalHost TerminalHost) *Session {
	s := &Session{
		ID:           nextSessionId(),
		Mode:         ModeLocal,
		registry:     registry,
		terminalHost: terminalHost,
		config:       config,
		clients:      make(map[ClientId]*Client),
		handshakes:   make(map[ClientId]chan struct{}),
		eventSubs:    make(map[uuid.UUID]func(Event)),
	}
	s.Breakpoints = newBreakpointStore(s)
	return s
}

// Subscribe registers fn to receive every Event this session emits.
func (s *Session) Subscribe(fn func(Event)) uuid.UUID {
	id := uuid.New()
	s.eventsMu.Lock()
	s.eventSubs[id] = fn
	s.eventsMu.Unlock()
	return id
}

func (s *Session) Unsubscribe(id uuid.UUID) {
	s.eventsMu.Lock()
	delete(s.eventSubs, id)
	s.eventsMu.Unlock()
}

func (s *Session) emit(ev Event) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	for _, fn := range s.eventSubs {
		fn(ev)
	}
}

func (s *Session) liveClients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.clients))
	for _, cl := range s.clients {
		out = append(out, cl)
	}
	return out
}

func (s *Session) ClientByID(id ClientId) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cl, ok := s.clients[id]
	return cl, ok
}

// IgnoreBreakpoints toggles the session-scoped mute (§4.6, §4.7).
func (s *Session) IgnoreBreakpoints(ctx context.Context, ignore bool) error {
	return s.Breakpoints.IgnoreAll(ctx, ignore)
}

// Failed reports the error that most recently tipped this session into
// the Failed state (§4.6), or nil if it never has.
func (s *Session) Failed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// fail records err as the session's Failed-state cause, tears down cl
// (if any), and returns the wrapped SessionFailedError for the caller
// to propagate.
func (s *Session) fail(cl *Client, t Transport, step string, err error) error {
	s.mu.Lock()
	s.failed = err
	s.mu.Unlock()
	if cl != nil {
		s.removeClient(cl.ID)
	}
	if t != nil {
		_ = t.Kill()
	}
	return &SessionFailedError{Step: step, Err: err}
}

// AddLocalClient spawns an adapter for config and runs the full
// handshake (§4.6): Initialize, Launch/Attach, wait for `initialized`,
// push breakpoints, ConfigurationDone. A failure at any other step kills
// the adapter and returns the originating error wrapped in
// SessionFailedError; a failed breakpoint push is only logged and the
// handshake continues. The session's mode is unaffected by one client's
// failure (other clients, if any, keep running).
func (s *Session) AddLocalClient(ctx context.Context, config Configuration) (*Client, error) {
	bin, transportKind, err := config.resolveBinary(s.registry)
	if err != nil {
		return nil, s.fail(nil, nil, "resolve", err)
	}

	var t Transport
	switch transportKind {
	case "stdio+pty":
		t = NewStdioPTYTransport(bin)
	case "tcp":
		t = NewTCPTransport(bin, "127.0.0.1:0", DefaultTCPConnectTimeout)
	default:
		t = NewStdioTransport(bin)
	}

	if err := t.Start(ctx); err != nil {
		return nil, s.fail(nil, nil, "start", err)
	}

	// NewLocalClient starts the router's read loop immediately, so the
	// event handler must be ready to receive before construction — it
	// waits on ready, which close() happens-after the assignment below,
	// so it never sees cl as nil.
	var cl *Client
	ready := make(chan struct{})
	cl = NewLocalClient(s.ID, t, func(msg dap.Message) {
		<-ready
		(&eventDispatcher{session: s, client: cl}).handle(msg)
	})
	close(ready)

	initialized := make(chan struct{})
	s.mu.Lock()
	s.clients[cl.ID] = cl
	s.handshakes[cl.ID] = initialized
	s.mu.Unlock()

	if _, err := cl.Initialize(ctx, "caboose-desktop", "caboose-desktop", config.Kind); err != nil {
		return nil, s.fail(cl, t, "initialize", err)
	}

	launchErrCh := make(chan error, 1)
	go func() {
		args := config.buildArguments()
		if config.Request == "attach" {
			launchErrCh <- cl.Attach(ctx, args)
		} else {
			launchErrCh <- cl.Launch(ctx, args, false)
		}
	}()

	select {
	case <-initialized:
	case err := <-launchErrCh:
		if err != nil {
			return nil, s.fail(cl, t, "launch", err)
		}
		// launch succeeded before `initialized` arrived (legal ordering); keep waiting
		<-initialized
	case <-ctx.Done():
		return nil, s.fail(cl, t, "launch", ctx.Err())
	}

	if err := s.Breakpoints.PushAll(ctx, cl); err != nil {
		slog.Warn("dap: pushing initial breakpoints", "error", err)
	}

	if cl.Capabilities().Supports(CapConfigurationDoneRequest) {
		if err := cl.ConfigurationDone(ctx); err != nil {
			return nil, s.fail(cl, t, "configurationDone", err)
		}
	}

	return cl, nil
}

// AddRemoteClient wires a client that forwards every command to peer.
// The peer's own local session has already run the handshake above on
// its side; this core does not re-run it.
func (s *Session) AddRemoteClient(ctx context.Context, peer Peer) *Client {
	s.Mode = ModeRemote

	var cl *Client
	ready := make(chan struct{})

	cl = NewRemoteClient(ctx, s.ID, peer, func(msg dap.Message) {
		<-ready
		(&eventDispatcher{session: s, client: cl}).handle(msg)
	})

	close(ready)

	s.mu.Lock()
	s.clients[cl.ID] = cl
	s.mu.Unlock()
	return cl
}

func (s *Session) onInitialized(ctx context.Context, cl *Client) {
	s.mu.Lock()
	ch, ok := s.handshakes[cl.ID]
	if ok {
		delete(s.handshakes, cl.ID)
	}
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (s *Session) onTerminated(ctx context.Context, cl *Client) {
	s.ShutdownClient(cl.ID)
}

func (s *Session) removeClient(id ClientId) {
	s.mu.Lock()
	delete(s.clients, id)
	delete(s.handshakes, id)
	s.mu.Unlock()
}

// ShutdownClient tears down one client, cancelling its in-flight
// requests with ErrAdapterGone and killing its transport. It emits
// EventClientShutdown before returning.
func (s *Session) ShutdownClient(id ClientId) {
	s.mu.Lock()
	cl, ok := s.clients[id]
	delete(s.clients, id)
	delete(s.handshakes, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := cl.Close(); err != nil {
		slog.Debug("dap: error closing client transport", "client", id, "error", err)
	}
	s.emit(Event{Kind: EventClientShutdown, SessionID: s.ID, ClientID: id})
}

// Shutdown tears down every client in the session.
func (s *Session) Shutdown() {
	for _, cl := range s.liveClients() {
		s.ShutdownClient(cl.ID)
	}
}
