package cvm

import (
	"strconv"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map"
)

// defaultMaxCallDepth bounds recursion the way a real JVM's -Xss does;
// spec §4.4 requires StackOverflowError rather than a Go stack overflow
// crashing the whole process.
const defaultMaxCallDepth = 2048

// Handle is an opaque, engine-external reference to a heap object — the
// "externally held handle registry" spec §4.3 lists alongside live frames
// as a GC root source. Native code (cmd/vmcli, or a future embedder) gets
// one when it needs to keep an object alive across calls into the
// interpreter without holding a naked *HeapObject.
type Handle uint64

// HandleRegistry is grounded on the teacher's own use of
// github.com/orcaman/concurrent-map for its account/session registries:
// same shape (opaque key -> live value, safe for concurrent access even
// though this engine drives it from one goroutine at a time).
type HandleRegistry struct {
	entries cmap.ConcurrentMap
	next    uint64
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{entries: cmap.New()}
}

func (r *HandleRegistry) Register(ref Reference) Handle {
	h := Handle(atomic.AddUint64(&r.next, 1))
	r.entries.Set(strconv.FormatUint(uint64(h), 10), ref)
	return h
}

func (r *HandleRegistry) Release(h Handle) {
	r.entries.Remove(strconv.FormatUint(uint64(h), 10))
}

func (r *HandleRegistry) Get(h Handle) (Reference, bool) {
	v, ok := r.entries.Get(strconv.FormatUint(uint64(h), 10))
	if !ok {
		return Null, false
	}
	return v.(Reference), true
}

// Roots returns every reference an external caller is currently pinning.
func (r *HandleRegistry) Roots() []Reference {
	out := make([]Reference, 0, r.entries.Count())
	for entry := range r.entries.IterBuffered() {
		if ref, ok := entry.Val.(Reference); ok && !ref.IsNull() {
			out = append(out, ref)
		}
	}
	return out
}

// CallStack is the ordered sequence of active Frames (spec §3/§4.4) plus
// the handle registry, together implementing RootProvider for the
// collector.
type CallStack struct {
	frames   []*Frame
	handles  *HandleRegistry
	maxDepth int
}

func NewCallStack(handles *HandleRegistry) *CallStack {
	return &CallStack{handles: handles, maxDepth: defaultMaxCallDepth}
}

func (s *CallStack) Push(f *Frame) error {
	if len(s.frames) >= s.maxDepth {
		return newVMError(StackOverflowError, "call depth exceeded %d", s.maxDepth)
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *CallStack) Pop() *Frame {
	n := len(s.frames)
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

func (s *CallStack) Current() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *CallStack) Depth() int { return len(s.frames) }

// Roots implements RootProvider: every reference reachable from a live
// frame's locals/operand stack, plus everything pinned in the handle
// registry.
func (s *CallStack) Roots() []Reference {
	var out []Reference
	for _, f := range s.frames {
		out = f.refs(out)
	}
	if s.handles != nil {
		out = append(out, s.handles.Roots()...)
	}
	return out
}

// StackTrace captures (class, method, line) for every live frame, deepest
// first, for Throwable.fillInStackTrace (spec §4.4 native list).
type StackTraceElement struct {
	ClassName  string
	MethodName string
	Line       int
}

func (s *CallStack) StackTrace() []StackTraceElement {
	trace := make([]StackTraceElement, 0, len(s.frames))
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		line := -1
		if f.Method.Raw.Code != nil {
			line = f.Method.Raw.Code.LineForPC(f.pc)
		}
		trace = append(trace, StackTraceElement{
			ClassName:  f.Class.Name,
			MethodName: f.Method.Name,
			Line:       line,
		})
	}
	return trace
}
