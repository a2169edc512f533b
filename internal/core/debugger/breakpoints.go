package debugger

import (
	"context"
	"sync"

	"github.com/google/go-dap"
)

// BreakpointKind distinguishes an ordinary stopping breakpoint from a
// logpoint, which never stops execution and instead logs a message.
type BreakpointKind int

const (
	BreakpointStandard BreakpointKind = iota
	BreakpointLog
)

// Position is 0-based in both Line and Column, matching a text
// buffer's native coordinates. BreakpointStore is the sole point where
// this core converts to DAP's 1-based wire coordinates (DESIGN.md
// Open Question): every other component only ever sees Position.
type Position struct {
	Line   int
	Column int
}

// BufferAnchor is an opaque token the embedder's text buffer assigns
// to a breakpoint so the breakpoint tracks edits while its source
// file is open; this core never interprets it, only stores and hands
// it back to on_buffer_close.
type BufferAnchor any

// Breakpoint is one entry in the store. Toggle identity is by Position
// equality, not ID; ID only exists so callers have a stable handle for
// UI rendering across a SetMessage/toggle pair.
type Breakpoint struct {
	ID           int
	Position     Position
	Anchor       BufferAnchor // non-nil while the source buffer is open
	Kind         BreakpointKind
	LogMessage   string
	Condition    string
	HitCondition string
	Verified     bool // last dap.Breakpoint.Verified the adapter reported
}

// BreakpointStore holds every breakpoint for a session, independent of
// any one client, and rebroadcasts the full set for a path to every
// live client whenever it changes (§4.7). It has a back-reference to
// its owning Session purely to reach the session's live client list
// and SetBreakpoints method; it does not otherwise touch session
// state.
type BreakpointStore struct {
	session *Session

	mu        sync.Mutex
	bySource  map[string][]*Breakpoint
	ignoreAll bool
	nextID    int
}

func newBreakpointStore(session *Session) *BreakpointStore {
	return &BreakpointStore{session: session, bySource: make(map[string][]*Breakpoint)}
}

// Toggle adds a breakpoint at pos if absent, or removes the existing
// one at pos if present, then rebroadcasts path's full set.
func (s *BreakpointStore) Toggle(ctx context.Context, path string, pos Position, kind BreakpointKind) error {
	s.mu.Lock()
	list := s.bySource[path]
	idx := indexByPosition(list, pos)
	if idx >= 0 {
		list = append(list[:idx], list[idx+1:]...)
	} else {
		s.nextID++
		list = append(list, &Breakpoint{ID: s.nextID, Position: pos, Kind: kind})
	}
	s.bySource[path] = list
	s.mu.Unlock()

	return s.broadcast(ctx, path)
}

// SetMessage replaces the log message on the breakpoint at pos,
// demoting it back to a Standard breakpoint if msg is empty.
func (s *BreakpointStore) SetMessage(ctx context.Context, path string, pos Position, msg string) error {
	s.mu.Lock()
	if idx := indexByPosition(s.bySource[path], pos); idx >= 0 {
		bp := s.bySource[path][idx]
		bp.LogMessage = msg
		if msg == "" {
			bp.Kind = BreakpointStandard
		} else {
			bp.Kind = BreakpointLog
		}
	}
	s.mu.Unlock()

	return s.broadcast(ctx, path)
}

// OnBufferOpen resolves every cached-line breakpoint in path to a live
// buffer anchor via resolve, supplied by the embedder, so the
// breakpoint's reported Position tracks edits until the buffer closes.
func (s *BreakpointStore) OnBufferOpen(path string, resolve func(Position) BufferAnchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bp := range s.bySource[path] {
		bp.Anchor = resolve(bp.Position)
	}
}

// OnBufferClose collapses every live anchor in path back to a static
// Position via collapse, supplied by the embedder.
func (s *BreakpointStore) OnBufferClose(path string, collapse func(BufferAnchor) Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bp := range s.bySource[path] {
		if bp.Anchor != nil {
			bp.Position = collapse(bp.Anchor)
			bp.Anchor = nil
		}
	}
}

// OnFileRename re-keys every breakpoint from oldPath to newPath
// without touching their positions or rebroadcasting. OnBufferOpen
// does not push either; the set under newPath reaches clients on the
// next Toggle, SetMessage, IgnoreAll or PushAll.
func (s *BreakpointStore) OnFileRename(oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list, ok := s.bySource[oldPath]; ok {
		delete(s.bySource, oldPath)
		s.bySource[newPath] = list
	}
}

// IgnoreAll toggles the session-scoped mute: while true, every push
// sends an empty breakpoint list; toggling back off re-pushes the
// cached set for every known path.
func (s *BreakpointStore) IgnoreAll(ctx context.Context, ignore bool) error {
	s.mu.Lock()
	s.ignoreAll = ignore
	paths := make([]string, 0, len(s.bySource))
	for p := range s.bySource {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	var firstErr error
	for _, p := range paths {
		if err := s.broadcast(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PushAll rebroadcasts every known path's breakpoints; session.go calls
// this once after a fresh client reaches the handshake's breakpoint
// step (§4.6 step 4).
func (s *BreakpointStore) PushAll(ctx context.Context, cl *Client) error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.bySource))
	for p := range s.bySource {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	var firstErr error
	for _, p := range paths {
		wire := s.sourceBreakpoints(p)
		results, err := cl.SetBreakpoints(ctx, p, wire)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.applyVerification(p, results)
	}
	return firstErr
}

func (s *BreakpointStore) sourceBreakpoints(path string) []dap.SourceBreakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignoreAll {
		return nil
	}
	list := s.bySource[path]
	out := make([]dap.SourceBreakpoint, 0, len(list))
	for _, bp := range list {
		sb := dap.SourceBreakpoint{
			Line:         bp.Position.Line + 1,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
		}
		if bp.Position.Column > 0 {
			sb.Column = bp.Position.Column + 1
		}
		if bp.Kind == BreakpointLog {
			sb.LogMessage = bp.LogMessage
		}
		out = append(out, sb)
	}
	return out
}

// applyVerification stores the adapter's per-breakpoint verification
// status back into the active set for display; it never changes
// identity or triggers a rebroadcast. Results are assumed to be in the
// same order as the request's breakpoint list, per the DAP contract.
func (s *BreakpointStore) applyVerification(path string, results []dap.Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.bySource[path]
	for i := range results {
		if i < len(list) {
			list[i].Verified = results[i].Verified
		}
	}
}

func (s *BreakpointStore) broadcast(ctx context.Context, path string) error {
	wire := s.sourceBreakpoints(path)
	var firstErr error
	for _, cl := range s.session.liveClients() {
		results, err := cl.SetBreakpoints(ctx, path, wire)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.applyVerification(path, results)
	}
	return firstErr
}

func indexByPosition(list []*Breakpoint, pos Position) int {
	for i, bp := range list {
		if bp.Position == pos {
			return i
		}
	}
	return -1
}
