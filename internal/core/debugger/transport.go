package debugger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/go-dap"
)

// Binary describes how to launch (or locate) an adapter process.
// Adapter-binary installation/download is out of scope; this only
// names an already-installed executable.
type Binary struct {
	Command string
	Args    []string
	Cwd     string
	Envs    map[string]string
}

// Transport owns an adapter's I/O endpoints: it spawns cooperative
// reader/writer/stderr/log tasks and exposes framed messages in and
// out. Two or more Transport implementations can back the same
// Client/Session code with identical semantics (§4.2).
type Transport interface {
	// Start spawns the transport's tasks and returns once the adapter
	// is reachable (process started, or TCP connected). Inbound()
	// begins delivering messages only after Start returns nil.
	Start(ctx context.Context) error

	// Send enqueues m for writing. Returns ErrTransportClosed if the
	// writer task has already exited.
	Send(m dap.Message) error

	// Inbound delivers every decoded message from the adapter, in
	// receive order. Closed when the reader task observes EOF or a
	// fatal framing error.
	Inbound() <-chan dap.Message

	// Kill terminates the child (if any) and closes streams. Safe to
	// call more than once.
	Kill() error

	// Logs returns the sink that stderr/adapter-log bytes are routed
	// through, tagged LogAdapter.
	Logs() *logSink
}

// dialFunc produces the byte-stream endpoints a processTransport drives.
// logr may be nil if the variant has no secondary adapter-log stream.
type dialFunc func(ctx context.Context) (stdin io.WriteCloser, stdout io.Reader, stderr io.Reader, logr io.Reader, kill func() error, err error)

// processTransport is the shared core behind the Stdio, Stdio+PTY, TCP
// and SSH-tunneled-TCP variants: they differ only in how the byte
// streams are obtained (dial), not in how framing, fan-out and
// shutdown work.
type processTransport struct {
	dial dialFunc
	logs *logSink
	name string // for log messages, e.g. "stdio", "tcp"

	mu       sync.Mutex
	stdin    io.WriteCloser
	kill     func() error
	outbound chan dap.Message
	inbound  chan dap.Message
	done     chan struct{}
	closed   bool
}

func newProcessTransport(name string, dial dialFunc) *processTransport {
	return &processTransport{
		dial:     dial,
		logs:     newLogSink(),
		name:     name,
		outbound: make(chan dap.Message, 16),
		inbound:  make(chan dap.Message, 16),
		done:     make(chan struct{}),
	}
}

func (t *processTransport) Logs() *logSink { return t.logs }

func (t *processTransport) Inbound() <-chan dap.Message { return t.inbound }

func (t *processTransport) Start(ctx context.Context) error {
	stdin, stdout, stderr, logr, kill, err := t.dial(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.stdin = stdin
	t.kill = kill
	t.mu.Unlock()

	go t.readerTask(stdout)
	go t.writerTask()
	if stderr != nil {
		go t.drainTask(stderr, LogAdapter)
	}
	if logr != nil {
		go t.drainTask(logr, LogAdapter)
	}

	slog.Info("dap transport started", "transport", t.name)
	return nil
}

func (t *processTransport) readerTask(stdout io.Reader) {
	defer close(t.inbound)

	r := bufio.NewReader(stdout)
	for {
		msg, err := decodeFrame(r)
		if err != nil {
			if err == io.EOF {
				slog.Debug("dap transport reader saw clean eof", "transport", t.name)
				return
			}
			slog.Error("dap transport framing error", "transport", t.name, "error", err)
			return
		}
		t.inbound <- msg
	}
}

func (t *processTransport) writerTask() {
	for {
		select {
		case msg := <-t.outbound:
			t.mu.Lock()
			stdin := t.stdin
			t.mu.Unlock()
			if stdin == nil {
				continue
			}
			if err := encodeFrame(stdin, msg); err != nil {
				slog.Error("dap transport write failed", "transport", t.name, "error", err)
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *processTransport) drainTask(r io.Reader, tag LogTag) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		t.logs.emit(LogLine{Tag: tag, Text: scanner.Text()})
	}
}

func (t *processTransport) Send(m dap.Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	select {
	case t.outbound <- m:
		return nil
	case <-t.done:
		return ErrTransportClosed
	}
}

func (t *processTransport) Kill() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	kill := t.kill
	t.mu.Unlock()

	close(t.done)

	if kill == nil {
		return nil
	}
	if err := kill(); err != nil {
		return fmt.Errorf("dap: killing transport: %w", err)
	}
	return nil
}
