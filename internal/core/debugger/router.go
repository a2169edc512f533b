package debugger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/go-dap"
)

// router assigns monotonic sequence ids to outbound requests, parks
// callers until the matching response arrives, and hands everything
// else (events, reverse requests) to a dispatch callback. It has no
// DAP semantics of its own: it only matches ids and classifies message
// type (§4.3).
type router struct {
	transport Transport
	onEvent   func(dap.Message) // events and reverse requests from the adapter

	seq atomic.Int64

	mu      sync.Mutex
	pending map[int]chan *dap.Response
	done    bool
}

func newRouter(t Transport, onEvent func(dap.Message)) *router {
	return &router{
		transport: t,
		onEvent:   onEvent,
		pending:   make(map[int]chan *dap.Response),
	}
}

// nextSeq returns the next strictly monotonic sequence id for this
// client, starting at 1 and never reused, even across cancellation
// (I3).
func (r *router) nextSeq() int {
	return int(r.seq.Add(1))
}

// run drains the transport's inbound channel until it closes, routing
// responses to waiters and everything else to onEvent. Call in its own
// goroutine; returns when the transport shuts down.
func (r *router) run() {
	for msg := range r.transport.Inbound() {
		switch m := msg.(type) {
		case *dap.Response:
			r.resolve(m)
		default:
			r.onEvent(msg)
		}
	}
	r.shutdown()
}

func (r *router) resolve(resp *dap.Response) {
	r.mu.Lock()
	ch, ok := r.pending[resp.RequestSeq]
	if ok {
		delete(r.pending, resp.RequestSeq)
	}
	r.mu.Unlock()

	if !ok {
		slog.Warn("dap: unsolicited response", "request_seq", resp.RequestSeq, "command", resp.Command)
		return
	}
	ch <- resp
}

// request sends msg (which must already carry its assigned Seq) and
// blocks until the matching response arrives, ctx is cancelled, or the
// router shuts down.
func (r *router) request(ctx context.Context, seq int, msg dap.Message) (*dap.Response, error) {
	ch := make(chan *dap.Response, 1)

	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return nil, ErrAdapterGone
	}
	r.pending[seq] = ch
	r.mu.Unlock()

	if err := r.transport.Send(msg); err != nil {
		r.mu.Lock()
		delete(r.pending, seq)
		r.mu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, ErrAdapterGone
		}
		return resp, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, seq)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// shutdown drains the pending map, resolving every waiter with
// ErrAdapterGone, per §4.3 step 4 and the Shutdown-completeness
// property in §8.
func (r *router) shutdown() {
	r.mu.Lock()
	r.done = true
	pending := r.pending
	r.pending = make(map[int]chan *dap.Response)
	r.mu.Unlock()

	for seq, ch := range pending {
		slog.Debug("dap: cancelling pending request on shutdown", "seq", seq)
		close(ch)
	}
}
