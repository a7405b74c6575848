package cvm

import (
	"sync/atomic"

	"gopkg.in/karalabe/cookiejar.v2/collections/prque"
)

// defaultSlabSize is the size of one contiguous allocation region. The heap grows
// by adding slabs; spec §4.3 allows "a single or small number of slabs".
const defaultSlabSize = 4 * 1024 * 1024

// allocHeader is the self-describing header spec §4.3 requires so that
// sweep never needs an external table: every live or dead chunk in a slab
// carries its own class pointer (nil for arrays) and byte size.
type allocHeader struct {
	class        *Class // nil for arrays
	arrayElement string // element field descriptor; "" for objects
	size         int    // bytes accounted to this allocation
	identityHash int32
	marked       bool
}

// HeapObject is the unified representation of everything spec §3 calls
// "Object (heap)" or "Array (heap)": a header plus contiguous storage.
// Instance fields (for objects) and elements (for arrays) are stored as
// tagged Values rather than packed bytes — this trades the "packed
// primitive array" wording of spec §3 for uniform, GC-precise storage,
// which is the same tradeoff spec §9 makes explicitly for operand-stack
// slots ("tagging each slot... rather than attempting full static
// analysis").
type HeapObject struct {
	header allocHeader
	fields []Value // objects: instance fields in layout order
	slots  []Value // arrays: elements

	// hostString backs java/lang/String instances only. There is no real
	// JDK on the classpath (spec §8: scenario tests build Class/Method
	// graphs directly rather than requiring javac), so String storage is
	// this host string rather than a char[] field plus String methods
	// implemented in bytecode.
	hostString string

	// mirrors is set only on instances of java/lang/Class: the runtime
	// Class this particular mirror describes. It is kept separate from
	// header.class so a Class instance's own runtime class (header.class)
	// stays java/lang/Class itself — an instanceof java/lang/Class check
	// or a getClass() on the mirror must not report the mirrored class
	// instead of Class.
	mirrors *Class
}

func (h *HeapObject) HostString() string { return h.hostString }

// Mirrors returns the runtime Class this java/lang/Class instance
// describes, or nil if h is not a Class mirror.
func (h *HeapObject) Mirrors() *Class { return h.mirrors }

func (h *HeapObject) IsArray() bool { return h.header.arrayElement != "" }
func (h *HeapObject) Class() *Class { return h.header.class }
func (h *HeapObject) IdentityHashCode() int32 { return h.header.identityHash }
func (h *HeapObject) ArrayLength() int { return len(h.slots) }
func (h *HeapObject) ArrayElementKind() string { return h.header.arrayElement }

// freeChunk is a reclaimed, unlinked HeapObject slot kept only for its
// size accounting; the actual Go value is dropped so Go's own GC can
// reclaim the backing memory once our bookkeeping releases it.
type freeChunk struct {
	size int
}

// Heap is the slab-backed allocator plus mark-sweep collector of spec §4.3.
// It intentionally does not manage raw bytes/pointers (package classfile's
// sibling packages avoid unsafe.Pointer, per idiomatic-Go constraints);
// instead each slab tracks the *count and byte-size* of everything
// currently allocated from it, and live objects are ordinary
// Go-heap-allocated *HeapObject values reachable only through frames, the
// handle registry, and other live objects' fields — so once our sweep
// phase drops the last such reference, Go's own collector reclaims the
// memory. This keeps the mark-sweep *policy* (precise roots, explicit
// mark bit, explicit sweep pass, OutOfMemory once the ceiling is hit)
// faithful to spec §4.3 without fighting Go's memory model. The ceiling
// starts at the configured size; when a collection does not free enough,
// reserve raises it by one slab, until it reaches 64 slabs.
type Heap struct {
	maxBytes   int
	usedBytes  int64
	liveCount  int64
	nextHash   int32
	freeList   *prque.Prque // worst-fit reuse of chunks reclaimed by sweep
	gc         *GC
	objects    []*HeapObject // every live allocation, walked by sweep
}

// NewHeap creates a heap with the given ceiling in bytes (0 means the
// default slab size, growable — see allocate).
func NewHeap(maxBytes int) *Heap {
	if maxBytes <= 0 {
		maxBytes = defaultSlabSize
	}
	h := &Heap{
		maxBytes: maxBytes,
		freeList: prque.New(),
	}
	h.gc = newGC(h)
	return h
}

func (h *Heap) nextIdentityHash() int32 {
	return int32(atomic.AddInt32(&h.nextHash, 1))
}

// Stats is the "heap-size probe" spec §4.3/§8.6 requires to verify sweep
// actually reclaimed unreachable objects.
type Stats struct {
	UsedBytes int64
	LiveCount int64
}

func (h *Heap) Stats() Stats {
	return Stats{UsedBytes: atomic.LoadInt64(&h.usedBytes), LiveCount: atomic.LoadInt64(&h.liveCount)}
}

func sizeOfObject(class *Class) int {
	return 16 + 8*len(class.fieldLayout.slots)
}

func sizeOfArray(length int) int {
	return 16 + 8*length
}

// Allocate implements spec §4.3's allocate(class): bump-allocate (here,
// account) a new instance, running GC and retrying once on exhaustion.
func (h *Heap) Allocate(roots RootProvider, class *Class) (*HeapObject, error) {
	size := sizeOfObject(class)
	if err := h.reserve(roots, size); err != nil {
		return nil, err
	}
	obj := &HeapObject{
		header: allocHeader{class: class, size: size, identityHash: h.nextIdentityHash()},
		fields: make([]Value, len(class.fieldLayout.slots)),
	}
	for i, slot := range class.fieldLayout.slots {
		obj.fields[i] = zeroValueFor(slot.Descriptor)
	}
	atomic.AddInt64(&h.liveCount, 1)
	h.objects = append(h.objects, obj)
	return obj, nil
}

// AllocateArray implements spec §4.3's allocate_array(kind, length).
func (h *Heap) AllocateArray(roots RootProvider, elementDescriptor string, length int) (*HeapObject, error) {
	if length < 0 {
		return nil, newVMError(NegativeArraySizeException, "negative array size: %d", length)
	}
	size := sizeOfArray(length)
	if err := h.reserve(roots, size); err != nil {
		return nil, err
	}
	arr := &HeapObject{
		header: allocHeader{arrayElement: elementDescriptor, size: size, identityHash: h.nextIdentityHash()},
		slots:  make([]Value, length),
	}
	zero := zeroValueFor(elementDescriptor)
	for i := range arr.slots {
		arr.slots[i] = zero
	}
	atomic.AddInt64(&h.liveCount, 1)
	h.objects = append(h.objects, arr)
	return arr, nil
}

// reserve accounts `size` bytes, running a GC pass (and, failing that,
// growing the ceiling by one slab as a last resort before OutOfMemory —
// spec allows "a single or small number of slabs") when the heap is full.
func (h *Heap) reserve(roots RootProvider, size int) error {
	if h.tryReuseOrBump(size) {
		return nil
	}
	h.gc.collect(roots)
	if h.tryReuseOrBump(size) {
		return nil
	}
	// Grow once by another slab's worth of budget before giving up; this
	// models "a single or small number of slabs" rather than one fixed
	// region, while still bounding runaway allocation.
	if h.maxBytes < 64*defaultSlabSize {
		h.maxBytes += defaultSlabSize
		if h.tryReuseOrBump(size) {
			return nil
		}
	}
	return newVMError(OutOfMemoryError, "heap exhausted: used=%d max=%d requested=%d", h.usedBytes, h.maxBytes, size)
}

func (h *Heap) tryReuseOrBump(size int) bool {
	// Worst-fit reuse: the largest reclaimed chunk is popped; if it is
	// large enough the remainder is pushed back as a smaller chunk.
	if !h.freeList.Empty() {
		item, priority := h.freeList.Pop()
		chunk := item.(freeChunk)
		if chunk.size >= size {
			if remainder := chunk.size - size; remainder > 0 {
				h.freeList.Push(freeChunk{size: remainder}, float32(remainder))
			}
			atomic.AddInt64(&h.usedBytes, int64(size))
			return true
		}
		// Not big enough: put it back and fall through to bump allocation.
		h.freeList.Push(chunk, priority)
	}
	if int(h.usedBytes)+size > h.maxBytes {
		return false
	}
	atomic.AddInt64(&h.usedBytes, int64(size))
	return true
}

// release is called by the collector's sweep phase for each object it did
// not mark: the bytes are returned to the free list for worst-fit reuse,
// and the object itself is dropped from the live-object roster so Go's
// own collector can reclaim it once no other reference exists (there
// should be none, since sweep only calls this for unmarked objects).
func (h *Heap) release(obj *HeapObject) {
	atomic.AddInt64(&h.usedBytes, -int64(obj.header.size))
	atomic.AddInt64(&h.liveCount, -1)
	if obj.header.size > 0 {
		h.freeList.Push(freeChunk{size: obj.header.size}, float32(obj.header.size))
	}
}
