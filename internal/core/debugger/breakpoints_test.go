package debugger

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-dap"
)

func TestBreakpointStoreToggleAddsAndRemoves(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	store := s.Breakpoints
	ctx := context.Background()

	if err := store.Toggle(ctx, "main.go", Position{Line: 4}, BreakpointStandard); err != nil {
		t.Fatalf("Toggle (add): %v", err)
	}
	wire := store.sourceBreakpoints("main.go")
	if len(wire) != 1 || wire[0].Line != 5 { // 0-based Position -> 1-based wire
		t.Fatalf("sourceBreakpoints after add = %+v", wire)
	}

	if err := store.Toggle(ctx, "main.go", Position{Line: 4}, BreakpointStandard); err != nil {
		t.Fatalf("Toggle (remove): %v", err)
	}
	if wire := store.sourceBreakpoints("main.go"); len(wire) != 0 {
		t.Fatalf("sourceBreakpoints after remove = %+v, want empty", wire)
	}
}

func TestBreakpointStoreSetMessagePromotesToLogpoint(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	store := s.Breakpoints
	ctx := context.Background()

	_ = store.Toggle(ctx, "a.go", Position{Line: 1}, BreakpointStandard)
	_ = store.SetMessage(ctx, "a.go", Position{Line: 1}, "hit count: {count}")

	wire := store.sourceBreakpoints("a.go")
	if len(wire) != 1 || wire[0].LogMessage != "hit count: {count}" {
		t.Fatalf("sourceBreakpoints = %+v", wire)
	}

	_ = store.SetMessage(ctx, "a.go", Position{Line: 1}, "")
	wire = store.sourceBreakpoints("a.go")
	if len(wire) != 1 || wire[0].LogMessage != "" {
		t.Fatalf("clearing the message should demote back to standard: %+v", wire)
	}
}

func TestBreakpointStoreIgnoreAllSuppressesWire(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	store := s.Breakpoints
	ctx := context.Background()

	_ = store.Toggle(ctx, "a.go", Position{Line: 1}, BreakpointStandard)
	if err := store.IgnoreAll(ctx, true); err != nil {
		t.Fatalf("IgnoreAll(true): %v", err)
	}
	if wire := store.sourceBreakpoints("a.go"); wire != nil {
		t.Fatalf("sourceBreakpoints while ignored = %+v, want nil", wire)
	}

	if err := store.IgnoreAll(ctx, false); err != nil {
		t.Fatalf("IgnoreAll(false): %v", err)
	}
	if wire := store.sourceBreakpoints("a.go"); len(wire) != 1 {
		t.Fatalf("sourceBreakpoints after un-ignoring = %+v, want 1 entry", wire)
	}
}

func TestBreakpointStoreBufferAnchorLifecycle(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	store := s.Breakpoints
	ctx := context.Background()
	_ = store.Toggle(ctx, "a.go", Position{Line: 2}, BreakpointStandard)

	store.OnBufferOpen("a.go", func(pos Position) BufferAnchor { return pos.Line + 100 })
	store.OnBufferClose("a.go", func(anchor BufferAnchor) Position {
		return Position{Line: anchor.(int) - 100}
	})

	wire := store.sourceBreakpoints("a.go")
	if len(wire) != 1 || wire[0].Line != 3 {
		t.Fatalf("position should survive the open/close round trip unchanged: %+v", wire)
	}
}

func TestBreakpointStorePushAllAppliesVerification(t *testing.T) {
	s := NewSession(Configuration{}, nil, nil)
	store := s.Breakpoints
	ctx := context.Background()
	_ = store.Toggle(ctx, "a.go", Position{Line: 0}, BreakpointStandard)

	ft := newFakeTransport()
	cl := NewLocalClient(s.ID, ft, func(dap.Message) {})

	go func() {
		msg := waitForSent(t, ft)
		req, ok := msg.(*dap.SetBreakpointsRequest)
		if !ok {
			t.Errorf("sent message is %T, want *dap.SetBreakpointsRequest", msg)
			return
		}
		// The router always hands DecodeResponse a generic *dap.Response
		// with an untyped Body (body.go), never a per-command typed
		// response struct, so the fake adapter replies the same way a
		// real one's decoded response would look once it reaches here.
		ft.inbound <- &dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: 2, Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "setBreakpoints",
			Body: map[string]any{
				"breakpoints": []map[string]any{{"verified": true}},
			},
		}
	}()

	if err := store.PushAll(ctx, cl); err != nil {
		t.Fatalf("PushAll: %v", err)
	}

	store.mu.Lock()
	verified := store.bySource["a.go"][0].Verified
	store.mu.Unlock()
	if !verified {
		t.Error("breakpoint should be marked Verified after PushAll")
	}
}

// waitForSent polls fakeTransport.sent until Send has been called at
// least once, since it's a plain slice rather than a channel.
func waitForSent(t *testing.T, ft *fakeTransport) dap.Message {
	t.Helper()
	for i := 0; i < 200; i++ {
		ft.mu.Lock()
		n := len(ft.sent)
		if n > 0 {
			msg := ft.sent[n-1]
			ft.mu.Unlock()
			return msg
		}
		ft.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a sent message")
	return nil
}
