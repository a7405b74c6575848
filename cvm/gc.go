package cvm

import (
	"time"

	"github.com/aristanetworks/goarista/monotime"
)

// RootProvider is implemented by whatever owns the live call stack (the
// Engine, in practice) plus any externally-held handles (spec §4.3:
// "roots = live frame locals/operand-stack slots ... plus an externally
// held handle registry"). Roots returns every currently-reachable
// Reference; duplicates and nulls are both fine, collect's mark phase
// skips both.
type RootProvider interface {
	Roots() []Reference
}

// PauseStats records one collection cycle's timing and effect, exposed
// through Heap.Stats()'s sibling GC.LastPause for diagnostics and for the
// GarbageCollection scenario's "heap did shrink after sweep" probe.
type PauseStats struct {
	Duration  time.Duration
	Swept     int
	Retained  int
}

// GC is the heap's precise mark-sweep collector (spec §4.3). It is
// "precise" in the sense the JVM spec's own alternative to a
// StackMapTable-driven collector is: every operand-stack and local slot
// already carries its ValueKind via the Value interface, so mark never
// needs to guess whether a 32-bit slot holds an int or a compressed
// pointer.
type GC struct {
	heap      *Heap
	LastPause PauseStats
}

func newGC(heap *Heap) *GC {
	return &GC{heap: heap}
}

// collect runs one stop-the-world mark-sweep cycle. The engine is
// single-threaded (spec §5), so "stop the world" here just means
// "synchronously, inline in the allocating call" — there is no other
// goroutine to pause.
func (g *GC) collect(roots RootProvider) {
	start := monotime.Now()

	for _, obj := range g.heap.objects {
		obj.header.marked = false
	}

	var stack []*HeapObject
	for _, r := range roots.Roots() {
		if !r.IsNull() {
			stack = append(stack, r.Ptr)
		}
	}
	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if obj == nil || obj.header.marked {
			continue
		}
		obj.header.marked = true
		if obj.IsArray() {
			for _, v := range obj.slots {
				if ref, ok := v.(Reference); ok && !ref.IsNull() {
					stack = append(stack, ref.Ptr)
				}
			}
		} else {
			for _, v := range obj.fields {
				if ref, ok := v.(Reference); ok && !ref.IsNull() {
					stack = append(stack, ref.Ptr)
				}
			}
		}
	}

	retained := g.heap.objects[:0]
	swept := 0
	for _, obj := range g.heap.objects {
		if obj.header.marked {
			retained = append(retained, obj)
		} else {
			g.heap.release(obj)
			swept++
		}
	}
	g.heap.objects = retained

	g.LastPause = PauseStats{
		Duration: time.Duration(monotime.Now() - start),
		Swept:    swept,
		Retained: len(retained),
	}
}
