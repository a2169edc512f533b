package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/caboose-desktop/dapcore/internal/core/debugger/proto"
)

// Peer is the collaboration bridge's transport-agnostic handle to a
// remote participant (§4.9): something else (a websocket, an SSH
// tunnel, an in-process pipe in tests) actually carries Envelopes back
// and forth. Peer only moves bytes; it has no DAP semantics.
type Peer interface {
	Send(ctx context.Context, env proto.Envelope) error
	Recv(ctx context.Context) (proto.Envelope, error)
}

// remoteBridge forwards one client's commands to a Peer instead of a
// local adapter, matching requests to responses by RequestID the same
// way router.go matches DAP sequence numbers to responses.
type remoteBridge struct {
	peer      Peer
	sessionID SessionId
	clientID  ClientId
	onEvent   func(proto.Envelope)

	mu      sync.Mutex
	pending map[string]chan proto.Envelope
	done    bool
}

func newRemoteBridge(peer Peer, sessionID SessionId, clientID ClientId, onEvent func(proto.Envelope)) *remoteBridge {
	return &remoteBridge{
		peer: peer, sessionID: sessionID, clientID: clientID, onEvent: onEvent,
		pending: make(map[string]chan proto.Envelope),
	}
}

// run drains Recv until it errors (the peer is gone), routing
// KindResponse envelopes to waiters and everything else to onEvent.
// Call in its own goroutine; returns when the peer connection ends.
func (b *remoteBridge) run(ctx context.Context) {
	for {
		env, err := b.peer.Recv(ctx)
		if err != nil {
			slog.Debug("dap: remote bridge closed", "error", err)
			b.shutdown()
			return
		}
		if env.Kind == proto.KindResponse {
			b.resolve(env)
			continue
		}
		b.onEvent(env)
	}
}

func (b *remoteBridge) resolve(env proto.Envelope) {
	b.mu.Lock()
	ch, ok := b.pending[env.RequestID]
	if ok {
		delete(b.pending, env.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		slog.Warn("dap: unsolicited remote response", "request_id", env.RequestID, "command", env.Command)
		return
	}
	ch <- env
}

// request sends a KindRequest envelope and blocks for the matching
// KindResponse, mirroring router.request's contract exactly (ctx
// cancellation, shutdown both surface the same way).
func (b *remoteBridge) request(ctx context.Context, command string, payload json.RawMessage) (proto.Envelope, error) {
	reqID := uuid.NewString()
	ch := make(chan proto.Envelope, 1)

	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return proto.Envelope{}, ErrAdapterGone
	}
	b.pending[reqID] = ch
	b.mu.Unlock()

	env := proto.Envelope{
		SessionID: uint64(b.sessionID),
		ClientID:  uint64(b.clientID),
		RequestID: reqID,
		Kind:      proto.KindRequest,
		Command:   command,
		Payload:   payload,
	}
	if err := b.peer.Send(ctx, env); err != nil {
		b.mu.Lock()
		delete(b.pending, reqID)
		b.mu.Unlock()
		return proto.Envelope{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return proto.Envelope{}, ErrAdapterGone
		}
		return resp, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, reqID)
		b.mu.Unlock()
		return proto.Envelope{}, ctx.Err()
	}
}

func (b *remoteBridge) shutdown() {
	b.mu.Lock()
	b.done = true
	pending := b.pending
	b.pending = make(map[string]chan proto.Envelope)
	b.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// commandPayload extracts the Arguments object a command would send
// over DAP and reuses it verbatim as the bridge's Payload, so no
// command type needs a second, proto-specific argument builder; the
// seq passed to BuildRequest is irrelevant here since only the
// Arguments field is read back out.
func commandPayload[R any](cmd Command[R]) (json.RawMessage, error) {
	raw, err := json.Marshal(cmd.BuildRequest(0))
	if err != nil {
		return nil, fmt.Errorf("dap: marshaling %s arguments: %w", cmd.Name(), err)
	}
	var wrapper struct {
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("dap: extracting %s arguments: %w", cmd.Name(), err)
	}
	return wrapper.Arguments, nil
}
