package debugger

import (
	"fmt"
	"sync"

	"github.com/google/go-dap"
)

// clientState is the per-client aggregated view the cache's reduce
// step populates (§4.5): threads, each thread's stack frames, each
// frame's scopes, and each scope's (or variable's) child variables,
// plus the client's known modules and loaded sources. It generalizes
// the teacher's DebugState (StackFrames/Variables maps keyed by id)
// to the full DAP inspection tree, guarded by its own lock since it is
// read and written from different goroutines than Client.mu protects
// (capabilities/running state).
type clientState struct {
	mu sync.RWMutex

	threads       []dap.Thread
	frames        map[ThreadId][]dap.StackFrame
	scopes        map[StackFrameId][]dap.Scope
	variables     map[VariableReference][]dap.Variable
	modules       []dap.Module
	loadedSources []dap.Source
}

func newClientState() *clientState {
	return &clientState{
		frames:    make(map[ThreadId][]dap.StackFrame),
		scopes:    make(map[StackFrameId][]dap.Scope),
		variables: make(map[VariableReference][]dap.Variable),
	}
}

// reduceThreads replaces the known thread list wholesale, per §4.4's
// "idempotent aggregate fetch" characterization of Threads.
func (cs *clientState) reduceThreads(threads []dap.Thread) {
	cs.mu.Lock()
	cs.threads = threads
	cs.mu.Unlock()
}

// reduceStackFrames replaces one thread's frames (§4.5:
// "stack_frames(thread): cacheable; replaces the thread's frames").
func (cs *clientState) reduceStackFrames(id ThreadId, frames []dap.StackFrame) {
	cs.mu.Lock()
	cs.frames[id] = frames
	cs.mu.Unlock()
}

// reduceScopes stores scopes "on the named frame" (§4.5).
func (cs *clientState) reduceScopes(frame StackFrameId, scopes []dap.Scope) {
	cs.mu.Lock()
	cs.scopes[frame] = scopes
	cs.mu.Unlock()
}

// reduceVariables inserts vars at the appropriate parent: variables()
// is keyed by the parent scope's or variable's own VariablesReference
// (§4.5: "inserted at the appropriate parent ... located by
// (thread_id, stack_frame_id, variables_reference)" — the thread and
// frame are reached by walking frames -> scopes -> this map, so the
// reference alone is sufficient to place it as a child).
func (cs *clientState) reduceVariables(ref VariableReference, vars []dap.Variable) {
	cs.mu.Lock()
	cs.variables[ref] = vars
	cs.mu.Unlock()
}

func (cs *clientState) reduceModules(mods []dap.Module) {
	cs.mu.Lock()
	cs.modules = mods
	cs.mu.Unlock()
}

func (cs *clientState) reduceLoadedSources(srcs []dap.Source) {
	cs.mu.Lock()
	cs.loadedSources = srcs
	cs.mu.Unlock()
}

// applySetVariable keeps a successful setVariable in sync with any
// already-cached children of ref: the mutated entry's value/type/
// variablesReference are updated in place if it's currently held.
func (cs *clientState) applySetVariable(ref VariableReference, name string, result SetVariableResult) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	vars := cs.variables[ref]
	for i := range vars {
		if vars[i].Name == name {
			vars[i].Value = result.Value
			vars[i].Type = result.Type
			vars[i].VariablesReference = int(result.VariablesReference)
		}
	}
}

func (cs *clientState) Threads() []dap.Thread {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.Thread(nil), cs.threads...)
}

func (cs *clientState) StackFrames(id ThreadId) []dap.StackFrame {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.StackFrame(nil), cs.frames[id]...)
}

func (cs *clientState) Scopes(frame StackFrameId) []dap.Scope {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.Scope(nil), cs.scopes[frame]...)
}

func (cs *clientState) Variables(ref VariableReference) []dap.Variable {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.Variable(nil), cs.variables[ref]...)
}

func (cs *clientState) Modules() []dap.Module {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.Module(nil), cs.modules...)
}

func (cs *clientState) LoadedSources() []dap.Source {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]dap.Source(nil), cs.loadedSources...)
}

// applyModuleEvent applies a `module` event's new/changed/removed
// effect against the known modules list (§4.8).
func (cs *clientState) applyModuleEvent(reason string, m dap.Module) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	idx := moduleIndex(cs.modules, m.Id)
	switch reason {
	case "new":
		if idx < 0 {
			cs.modules = append(cs.modules, m)
		} else {
			cs.modules[idx] = m
		}
	case "changed":
		if idx >= 0 {
			cs.modules[idx] = m
		} else {
			cs.modules = append(cs.modules, m)
		}
	case "removed":
		if idx >= 0 {
			cs.modules = append(cs.modules[:idx], cs.modules[idx+1:]...)
		}
	}
}

// applyLoadedSourceEvent applies a `loadedSource` event's new/changed/
// removed effect against the known loaded-sources list (§4.8).
func (cs *clientState) applyLoadedSourceEvent(reason string, s dap.Source) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	key := sourceKey(s)
	idx := -1
	for i, existing := range cs.loadedSources {
		if sourceKey(existing) == key {
			idx = i
			break
		}
	}
	switch reason {
	case "new":
		if idx < 0 {
			cs.loadedSources = append(cs.loadedSources, s)
		} else {
			cs.loadedSources[idx] = s
		}
	case "changed":
		if idx >= 0 {
			cs.loadedSources[idx] = s
		} else {
			cs.loadedSources = append(cs.loadedSources, s)
		}
	case "removed":
		if idx >= 0 {
			cs.loadedSources = append(cs.loadedSources[:idx], cs.loadedSources[idx+1:]...)
		}
	}
}

// clear drops everything, used on client shutdown: §4.4 "on client
// shutdown, modules and loaded_sources are cleared as well" (beyond
// the request cache, which client.go clears separately).
func (cs *clientState) clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.threads = nil
	cs.frames = make(map[ThreadId][]dap.StackFrame)
	cs.scopes = make(map[StackFrameId][]dap.Scope)
	cs.variables = make(map[VariableReference][]dap.Variable)
	cs.modules = nil
	cs.loadedSources = nil
}

func moduleIndex(mods []dap.Module, id any) int {
	key := fmt.Sprintf("%v", id)
	for i, m := range mods {
		if fmt.Sprintf("%v", m.Id) == key {
			return i
		}
	}
	return -1
}

// sourceKey identifies a dap.Source for new/changed/removed matching.
// DAP sources are either path-addressed or reference-addressed, never
// both meaningfully at once.
func sourceKey(s dap.Source) string {
	if s.Path != "" {
		return "path:" + s.Path
	}
	return fmt.Sprintf("ref:%d", s.SourceReference)
}
