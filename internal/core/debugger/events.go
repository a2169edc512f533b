package debugger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-dap"
)

// EventKind discriminates the high-level events the embedder observes
// through Session.Events (§4.8). It is a closed set mirroring spec
// section 4.8's event table.
type EventKind string

const (
	EventStopped        EventKind = "stopped"
	EventContinued      EventKind = "continued"
	EventThread         EventKind = "thread"
	EventModule         EventKind = "module"
	EventLoadedSource   EventKind = "loadedSource"
	EventOutput         EventKind = "output"
	EventProcess        EventKind = "process"
	EventExited         EventKind = "exited"
	EventClientShutdown EventKind = "clientShutdown"
)

// Event is the embedder-facing notification Session.Events delivers.
// Data's concrete type depends on Kind; see the *Data types below.
type Event struct {
	Kind      EventKind
	SessionID SessionId
	ClientID  ClientId
	Data      any
}

type StoppedData struct {
	Reason           string
	ThreadID         ThreadId
	AllThreads       bool
	HitBreakpointIDs []int
}

type ContinuedData struct {
	ThreadID   ThreadId
	AllThreads bool
}

type ThreadData struct {
	ThreadID ThreadId
	Started  bool
}

type ModuleData struct {
	Reason string
	Module dap.Module
}

type LoadedSourceData struct {
	Reason string
	Source dap.Source
}

type OutputData struct {
	Category string
	Output   string
}

type ProcessData struct {
	Name string
}

type ExitedData struct {
	ExitCode int
}

// eventDispatcher turns one client's inbound dap.Message stream into
// client/session state transitions plus the high-level Event stream
// (§4.8). One dispatcher is created per client (session.go); it closes
// over both so handlers can reach either.
type eventDispatcher struct {
	session *Session
	client  *Client
}

func (d *eventDispatcher) handle(msg dap.Message) {
	ctx := context.Background()

	switch m := msg.(type) {
	case *dap.InitializedEvent:
		go d.session.onInitialized(ctx, d.client)

	case *dap.CapabilitiesEvent:
		caps, err := parseCapabilities(m.Body.Capabilities)
		if err != nil {
			slog.Warn("dap: malformed capabilities event", "error", err)
			return
		}
		d.client.mergeCapabilities(caps)

	case *dap.StoppedEvent:
		if m.Body.AllThreadsStopped {
			d.client.setAllStopped()
		} else {
			d.client.setStopped(ThreadId(m.Body.ThreadId))
		}
		d.client.cache.invalidateAll()
		d.emit(EventStopped, StoppedData{
			Reason:           m.Body.Reason,
			ThreadID:         ThreadId(m.Body.ThreadId),
			AllThreads:       m.Body.AllThreadsStopped,
			HitBreakpointIDs: m.Body.HitBreakpointIds,
		})

	case *dap.ContinuedEvent:
		if m.Body.AllThreadsContinued {
			d.client.setAllRunning()
		} else {
			d.client.setRunning(ThreadId(m.Body.ThreadId))
		}
		d.client.cache.invalidateAll()
		d.emit(EventContinued, ContinuedData{
			ThreadID:   ThreadId(m.Body.ThreadId),
			AllThreads: m.Body.AllThreadsContinued,
		})

	case *dap.ThreadEvent:
		d.emit(EventThread, ThreadData{ThreadID: ThreadId(m.Body.ThreadId), Started: m.Body.Reason == "started"})

	case *dap.ModuleEvent:
		d.client.state.applyModuleEvent(m.Body.Reason, m.Body.Module)
		d.emit(EventModule, ModuleData{Reason: m.Body.Reason, Module: m.Body.Module})

	case *dap.LoadedSourceEvent:
		d.client.state.applyLoadedSourceEvent(m.Body.Reason, m.Body.Source)
		d.emit(EventLoadedSource, LoadedSourceData{Reason: m.Body.Reason, Source: m.Body.Source})

	case *dap.OutputEvent:
		if m.Body.Category == "telemetry" {
			return
		}
		d.emit(EventOutput, OutputData{Category: m.Body.Category, Output: m.Body.Output})

	case *dap.ProcessEvent:
		d.emit(EventProcess, ProcessData{Name: m.Body.Name})

	case *dap.ExitedEvent:
		d.client.setAllStopped()
		d.emit(EventExited, ExitedData{ExitCode: m.Body.ExitCode})

	case *dap.TerminatedEvent:
		go d.session.onTerminated(ctx, d.client)

	case *dap.RunInTerminalRequest:
		go d.session.handleRunInTerminal(ctx, d.client, m)

	case *dap.StartDebuggingRequest:
		go d.session.handleStartDebugging(ctx, d.client, m)

	default:
		slog.Debug("dap: unhandled inbound message", "type", fmt.Sprintf("%T", m))
	}
}

func (d *eventDispatcher) emit(kind EventKind, data any) {
	d.session.emit(Event{Kind: kind, SessionID: d.session.ID, ClientID: d.client.ID, Data: data})
}
