package debugger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-dap"
)

// sentSeq extracts the sequence number from a message this package's
// command types sent, so a test can reply with a matching RequestSeq
// without knowing the router's internal counter ahead of time.
func sentSeq(t *testing.T, msg dap.Message) int {
	t.Helper()
	switch m := msg.(type) {
	case *dap.ThreadsRequest:
		return m.Seq
	case *dap.StackTraceRequest:
		return m.Seq
	case *dap.ScopesRequest:
		return m.Seq
	case *dap.VariablesRequest:
		return m.Seq
	case *dap.SetVariableRequest:
		return m.Seq
	case *dap.ModulesRequest:
		return m.Seq
	case *dap.LoadedSourcesRequest:
		return m.Seq
	case *dap.RestartRequest:
		return m.Seq
	case *dap.DisconnectRequest:
		return m.Seq
	case *dap.TerminateRequest:
		return m.Seq
	case *dap.NextRequest:
		return m.Seq
	}
	t.Fatalf("sentSeq: unexpected message type %T", msg)
	return 0
}

func reply(ft *fakeTransport, seq int, command string, body any) {
	ft.inbound <- &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq + 1000, Type: "response"},
		RequestSeq:      seq,
		Success:         true,
		Command:         command,
		Body:            body,
	}
}

func TestClientInspectionTreePopulatesState(t *testing.T) {
	ft := newFakeTransport()
	cl := NewLocalClient(1, ft, func(dap.Message) {})

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "threads", map[string]any{
			"threads": []map[string]any{{"id": 1, "name": "main"}},
		})
	}()
	threads, err := cl.Threads(context.Background())
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 1 || threads[0].Id != 1 {
		t.Fatalf("Threads = %+v", threads)
	}
	if known := cl.KnownThreads(); len(known) != 1 || known[0].Id != 1 {
		t.Fatalf("KnownThreads = %+v, want one thread with id 1", known)
	}

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "stackTrace", map[string]any{
			"stackFrames": []map[string]any{{"id": 1, "name": "main", "line": 10}},
		})
	}()
	if _, err := cl.StackTrace(context.Background(), 1); err != nil {
		t.Fatalf("StackTrace: %v", err)
	}
	frames := cl.KnownStackFrames(1)
	if len(frames) != 1 || frames[0].Id != 1 || frames[0].Line != 10 {
		t.Fatalf("KnownStackFrames(1) = %+v", frames)
	}

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "scopes", map[string]any{
			"scopes": []map[string]any{{"name": "Locals", "variablesReference": 2}},
		})
	}()
	if _, err := cl.Scopes(context.Background(), 1); err != nil {
		t.Fatalf("Scopes: %v", err)
	}
	scopes := cl.KnownScopes(1)
	if len(scopes) != 1 || scopes[0].Name != "Locals" || scopes[0].VariablesReference != 2 {
		t.Fatalf("KnownScopes(1) = %+v", scopes)
	}

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "variables", map[string]any{
			"variables": []map[string]any{{"name": "x", "value": "42", "variablesReference": 0}},
		})
	}()
	if _, err := cl.Variables(context.Background(), 2); err != nil {
		t.Fatalf("Variables: %v", err)
	}
	vars := cl.KnownVariables(2)
	if len(vars) != 1 || vars[0].Name != "x" || vars[0].Value != "42" {
		t.Fatalf("KnownVariables(2) = %+v, want one variable x=42", vars)
	}
}

func TestClientModuleEventAppliesNewChangedRemoved(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	ft := newFakeTransport()
	cl := NewLocalClient(s.ID, ft, nil)
	d := &eventDispatcher{session: s, client: cl}

	d.handle(&dap.ModuleEvent{
		Event: dap.Event{Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "new", Module: dap.Module{Id: 1, Name: "libfoo"}},
	})
	if mods := cl.KnownModules(); len(mods) != 1 || mods[0].Name != "libfoo" {
		t.Fatalf("after new: KnownModules = %+v", mods)
	}

	d.handle(&dap.ModuleEvent{
		Event: dap.Event{Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "changed", Module: dap.Module{Id: 1, Name: "libfoo2"}},
	})
	if mods := cl.KnownModules(); len(mods) != 1 || mods[0].Name != "libfoo2" {
		t.Fatalf("after changed: KnownModules = %+v, want the one entry replaced", mods)
	}

	d.handle(&dap.ModuleEvent{
		Event: dap.Event{Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "removed", Module: dap.Module{Id: 1}},
	})
	if mods := cl.KnownModules(); len(mods) != 0 {
		t.Fatalf("after removed: KnownModules = %+v, want empty", mods)
	}
}

func TestClientLoadedSourceEventAppliesNewChangedRemoved(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	ft := newFakeTransport()
	cl := NewLocalClient(s.ID, ft, nil)
	d := &eventDispatcher{session: s, client: cl}

	d.handle(&dap.LoadedSourceEvent{
		Event: dap.Event{Event: "loadedSource"},
		Body:  dap.LoadedSourceEventBody{Reason: "new", Source: dap.Source{Path: "/a.go"}},
	})
	if srcs := cl.KnownLoadedSources(); len(srcs) != 1 || srcs[0].Path != "/a.go" {
		t.Fatalf("after new: KnownLoadedSources = %+v", srcs)
	}

	d.handle(&dap.LoadedSourceEvent{
		Event: dap.Event{Event: "loadedSource"},
		Body:  dap.LoadedSourceEventBody{Reason: "removed", Source: dap.Source{Path: "/a.go"}},
	})
	if srcs := cl.KnownLoadedSources(); len(srcs) != 0 {
		t.Fatalf("after removed: KnownLoadedSources = %+v, want empty", srcs)
	}
}

func TestClientSetVariableUpdatesStoredEntry(t *testing.T) {
	ft := newFakeTransport()
	cl := NewLocalClient(1, ft, func(dap.Message) {})
	cl.setCapabilities(mustCapabilities(t, map[string]any{CapSetVariable: true}))

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "variables", map[string]any{
			"variables": []map[string]any{{"name": "x", "value": "1", "variablesReference": 0}},
		})
	}()
	if _, err := cl.Variables(context.Background(), 2); err != nil {
		t.Fatalf("Variables: %v", err)
	}

	go func() {
		msg := waitForSent(t, ft)
		reply(ft, sentSeq(t, msg), "setVariable", map[string]any{
			"value": "2", "type": "int", "variablesReference": 0,
		})
	}()
	if _, err := cl.SetVariable(context.Background(), 2, "x", "2"); err != nil {
		t.Fatalf("SetVariable: %v", err)
	}

	vars := cl.state.Variables(2)
	if len(vars) != 1 || vars[0].Value != "2" {
		t.Fatalf("after SetVariable, stored x = %+v, want value 2", vars)
	}
}

func TestClientRestartFallsBackToDisconnectWhenUnsupported(t *testing.T) {
	ft := newFakeTransport()
	cl := NewLocalClient(1, ft, func(dap.Message) {})
	// No CapRestartRequest set: capabilities default to empty/unsupported.

	go func() {
		msg := waitForSent(t, ft)
		req, ok := msg.(*dap.DisconnectRequest)
		if !ok {
			t.Errorf("sent %T, want *dap.DisconnectRequest (no Restart request expected)", msg)
			return
		}
		if !req.Arguments.Restart || !req.Arguments.TerminateDebuggee {
			t.Errorf("DisconnectRequest.Arguments = %+v, want Restart=true, TerminateDebuggee=true", req.Arguments)
		}
		reply(ft, req.Seq, "disconnect", nil)
	}()

	if err := cl.Restart(context.Background(), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Restart: %v", err)
	}
}

func TestClientTerminateFallsBackToDisconnectWhenUnsupported(t *testing.T) {
	ft := newFakeTransport()
	cl := NewLocalClient(1, ft, func(dap.Message) {})

	go func() {
		msg := waitForSent(t, ft)
		req, ok := msg.(*dap.DisconnectRequest)
		if !ok {
			t.Errorf("sent %T, want *dap.DisconnectRequest (no Terminate request expected)", msg)
			return
		}
		if !req.Arguments.TerminateDebuggee {
			t.Errorf("DisconnectRequest.Arguments = %+v, want TerminateDebuggee=true", req.Arguments)
		}
		reply(ft, req.Seq, "disconnect", nil)
	}()

	if err := cl.Terminate(context.Background(), false); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

func TestClientSteppingGranularityElidedWhenUnsupported(t *testing.T) {
	ft := newFakeTransport()
	cl := NewLocalClient(1, ft, func(dap.Message) {})
	// CapSteppingGranularity absent from capabilities.

	go func() {
		msg := waitForSent(t, ft)
		req, ok := msg.(*dap.NextRequest)
		if !ok {
			t.Errorf("sent %T, want *dap.NextRequest", msg)
			return
		}
		if req.Arguments.Granularity != "" {
			t.Errorf("Granularity = %q, want empty since the capability is absent", req.Arguments.Granularity)
		}
		reply(ft, req.Seq, "next", nil)
	}()

	if err := cl.Next(context.Background(), 1, "instruction"); err != nil {
		t.Fatalf("Next: %v", err)
	}
}

func mustCapabilities(t *testing.T, body map[string]any) Capabilities {
	t.Helper()
	caps, err := parseCapabilities(body)
	if err != nil {
		t.Fatalf("parseCapabilities: %v", err)
	}
	return caps
}

func TestClientCloseClearsModulesAndSources(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	ft := newFakeTransport()
	cl := NewLocalClient(s.ID, ft, nil)
	d := &eventDispatcher{session: s, client: cl}
	d.handle(&dap.ModuleEvent{
		Event: dap.Event{Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "new", Module: dap.Module{Id: 1}},
	})
	d.handle(&dap.LoadedSourceEvent{
		Event: dap.Event{Event: "loadedSource"},
		Body:  dap.LoadedSourceEventBody{Reason: "new", Source: dap.Source{Path: "/a.go"}},
	})
	if len(cl.KnownModules()) != 1 {
		t.Fatal("expected one module before Close")
	}
	if len(cl.KnownLoadedSources()) != 1 {
		t.Fatal("expected one loaded source before Close")
	}

	_ = cl.Close()
	if len(cl.KnownModules()) != 0 {
		t.Error("Close should clear known modules (§4.4 client-shutdown cache rule)")
	}
	if len(cl.KnownLoadedSources()) != 0 {
		t.Error("Close should clear known loaded sources (§4.4 client-shutdown cache rule)")
	}

	select {
	case <-ft.inbound:
	case <-time.After(10 * time.Millisecond):
	}
}
