package debugger

import (
	"testing"
	"time"

	"github.com/google/go-dap"
)

func newTestClient(s *Session) (*Client, *fakeTransport) {
	ft := newFakeTransport()
	cl := NewLocalClient(s.ID, ft, nil)
	return cl, ft
}

func TestEventDispatcherStoppedUpdatesRunStateAndEmits(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	cl, _ := newTestClient(s)
	cl.setAllRunning()

	var got Event
	sub := make(chan struct{}, 1)
	s.Subscribe(func(ev Event) { got = ev; sub <- struct{}{} })

	d := &eventDispatcher{session: s, client: cl}
	d.handle(&dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"}, Event: "stopped"},
		Body:  dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 7, AllThreadsStopped: true},
	})

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped event")
	}

	if got.Kind != EventStopped {
		t.Fatalf("Kind = %v, want EventStopped", got.Kind)
	}
	data, ok := got.Data.(StoppedData)
	if !ok || data.Reason != "breakpoint" || !data.AllThreads {
		t.Fatalf("StoppedData = %+v", got.Data)
	}

	cl.mu.RLock()
	allRunning := cl.running.allRunning
	cl.mu.RUnlock()
	if allRunning {
		t.Error("a stopped event should clear allRunning")
	}
}

func TestEventDispatcherContinuedSetsRunning(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	cl, _ := newTestClient(s)

	d := &eventDispatcher{session: s, client: cl}
	d.handle(&dap.ContinuedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"}, Event: "continued"},
		Body:  dap.ContinuedEventBody{ThreadId: 3, AllThreadsContinued: false},
	})

	cl.mu.RLock()
	running := cl.running.byThread[3]
	cl.mu.RUnlock()
	if !running {
		t.Error("a continued event for thread 3 should mark it running")
	}
}

func TestEventDispatcherOutputFiltersTelemetry(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	cl, _ := newTestClient(s)

	var events int
	s.Subscribe(func(Event) { events++ })

	d := &eventDispatcher{session: s, client: cl}
	d.handle(&dap.OutputEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"}, Event: "output"},
		Body:  dap.OutputEventBody{Category: "telemetry", Output: "should not surface"},
	})
	d.handle(&dap.OutputEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: 2, Type: "event"}, Event: "output"},
		Body:  dap.OutputEventBody{Category: "stdout", Output: "hello"},
	})

	time.Sleep(10 * time.Millisecond)
	if events != 1 {
		t.Errorf("emitted %d events, want 1 (telemetry filtered)", events)
	}
}
