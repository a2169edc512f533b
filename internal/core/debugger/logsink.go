package debugger

import (
	"sync"

	"github.com/google/uuid"
)

// LogTag classifies a line of transport-owned log output.
type LogTag int

const (
	// LogAdapter is a line from the adapter process's stderr, or from a
	// transport's secondary adapter-log stream when one is supplied.
	LogAdapter LogTag = iota
	// LogRPC tags a trace of the DAP wire traffic itself rather than
	// adapter output. The transports in this package only emit
	// LogAdapter lines.
	LogRPC
)

func (t LogTag) String() string {
	if t == LogRPC {
		return "rpc"
	}
	return "adapter"
}

// LogLine is one piece of transport-owned log output.
type LogLine struct {
	Tag  LogTag
	Text string
}

// logSink fans out LogLine values to a registered set of handlers,
// keyed by a uuid subscription id so a caller can deregister without
// tearing down the others. Mirrors internal/core/log.Streamer's
// subscribe/unsubscribe pattern, but carries raw tagged lines instead
// of a persisted ring buffer: transport log output is not part of the
// core's in-memory debugger state (§3) and is never replayed.
type logSink struct {
	mu       sync.RWMutex
	handlers map[uuid.UUID]func(LogLine)
}

func newLogSink() *logSink {
	return &logSink{handlers: make(map[uuid.UUID]func(LogLine))}
}

// Subscribe registers fn and returns an id that can be passed to
// Unsubscribe. fn must not block: the stderr/log drain goroutines call
// it synchronously and a slow handler would stall them.
func (s *logSink) Subscribe(fn func(LogLine)) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.handlers[id] = fn
	s.mu.Unlock()
	return id
}

func (s *logSink) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

func (s *logSink) emit(line LogLine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.handlers {
		fn(line)
	}
}
