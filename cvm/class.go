package cvm

import (
	"sync/atomic"

	"github.com/andreabergia/rjvm/classfile"
	"github.com/andreabergia/rjvm/classpath"
)

// InitState is the three/four-state lifecycle spec §4.2 assigns to every
// linked Class: a class is Uninitialized until first active use,
// Initializing while running <clinit> (re-entrant on the initializing
// thread, blocking is unnecessary since the engine is single-threaded per
// spec §5), then Initialized, or Errored if <clinit> itself threw.
type InitState int32

const (
	StateUninitialized InitState = iota
	StateInitializing
	StateInitialized
	StateErrored
)

// fieldSlot is one entry in a Class's flattened instance field layout:
// spec §4.2 builds this by appending the class's own declared fields after
// its resolved superclass's layout, so subclass slots never disturb the
// superclass's own offsets.
type fieldSlot struct {
	Name           string
	Descriptor     string
	DeclaringClass *Class
}

type fieldLayout struct {
	slots []fieldSlot
	index map[string]int // "name:descriptor" -> slot index
}

func (l *fieldLayout) find(name, descriptor string) (int, bool) {
	i, ok := l.index[name+":"+descriptor]
	return i, ok
}

// Method is a resolved, owner-bound view of a classfile.Method.
type Method struct {
	Owner      *Class
	Raw        *classfile.Method
	Name       string
	Descriptor string
	Parsed     *classfile.MethodDescriptor
}

func (m *Method) IsStatic() bool { return m.Raw.AccessFlags.IsStatic() }
func (m *Method) IsNative() bool { return m.Raw.AccessFlags.IsNative() }
func (m *Method) IsAbstract() bool { return m.Raw.AccessFlags.IsAbstract() }
func (m *Method) signature() string { return m.Name + ":" + m.Descriptor }

// Class is the runtime, linked counterpart of a classfile.ClassFile: spec
// §4.2's "Class (runtime)" type, carrying resolved super/interface
// pointers, a flattened field layout, a vtable, and static storage, none
// of which classfile.ClassFile itself knows about (that package stays a
// pure, non-resolving decoder per its own doc comment).
type Class struct {
	Name        string
	Super       *Class
	Interfaces  []*Class
	AccessFlags classfile.ClassAccessFlags
	SourceFile  string

	file *classfile.ClassFile
	src  classpath.Source

	fieldLayout *fieldLayout
	methods     map[string]*Method // "name:descriptor" -> declared-here method

	vtable      []*Method
	vtableIndex map[string]int // signature -> vtable slot, virtual dispatch

	staticValues []Value
	staticIndex  map[string]int

	checksum [20]byte

	initState int32 // atomic InitState
	initErr   error
}

func (c *Class) IsInterface() bool { return c.AccessFlags.IsInterface() }

// ConstantPool exposes the owning classfile's constant pool for runtime
// symbolic resolution (ldc, invoke*, getfield/putfield, new, ...). The
// classfile package itself never dereferences these indices; cvm does.
func (c *Class) ConstantPool() *classfile.ConstantPool { return c.file.ConstantPool }

// AllMethods returns every method declared directly on c, for reflection
// (Class.getMethods-style natives) and diagnostics.
func (c *Class) AllMethods() map[string]*Method { return c.methods }

func (c *Class) State() InitState {
	return InitState(atomic.LoadInt32(&c.initState))
}

func (c *Class) setState(s InitState) {
	atomic.StoreInt32(&c.initState, int32(s))
}

// Checksum returns the ripemd160 digest of the class's raw bytes, computed
// once at Load time (spec §4.2 asks for a content fingerprint usable to
// detect a classpath entry changing between two loads of the same name).
func (c *Class) Checksum() [20]byte { return c.checksum }

// DeclaredMethod looks up a method declared directly on c (not inherited),
// the exact-owner form spec §4.4 needs for invokespecial/invokestatic.
func (c *Class) DeclaredMethod(name, descriptor string) (*Method, bool) {
	m, ok := c.methods[name+":"+descriptor]
	return m, ok
}

// VirtualMethod resolves the vtable slot for name/descriptor as seen from
// this class's own hierarchy — used both to obtain invokevirtual's static
// slot index and, given a runtime receiver class, its override.
func (c *Class) VirtualMethod(name, descriptor string) (*Method, bool) {
	idx, ok := c.vtableIndex[name+":"+descriptor]
	if !ok {
		return nil, false
	}
	return c.vtable[idx], true
}

// FieldOffset returns the flattened instance-field slot for name/descriptor,
// searching this class's own layout (which already includes inherited
// slots by construction).
func (c *Class) FieldOffset(name, descriptor string) (int, bool) {
	return c.fieldLayout.find(name, descriptor)
}

// StaticField returns the storage slot for a static field declared exactly
// on c (statics are not inherited the way instance layout is: spec §4.2
// treats getstatic/putstatic against a subclass as resolving up to the
// declaring class first).
func (c *Class) StaticField(name, descriptor string) (int, bool) {
	i, ok := c.staticIndex[name+":"+descriptor]
	return i, ok
}

func (c *Class) StaticValue(slot int) Value       { return c.staticValues[slot] }
func (c *Class) SetStaticValue(slot int, v Value) { c.staticValues[slot] = v }

// staticRefs appends every RefKind static field slot to out, c's
// contribution to GC roots (spec §4.3: static fields of loaded classes).
func (c *Class) staticRefs(out []Reference) []Reference {
	for _, v := range c.staticValues {
		if r, ok := v.(Reference); ok && !r.IsNull() {
			out = append(out, r)
		}
	}
	return out
}

// IsSubclassOf reports whether c is class or a (transitive) subclass of
// class, walking the Super chain — the "same class or below" half of
// instanceof/checkcast for class targets.
func (c *Class) IsSubclassOf(class *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == class {
			return true
		}
	}
	return false
}

// implementsInterface reports whether iface appears anywhere in c's
// resolved interface set, including interfaces inherited from
// superclasses and super-interfaces.
func (c *Class) implementsInterface(iface *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		for _, i := range cur.Interfaces {
			if i == iface || i.implementsInterface(iface) {
				return true
			}
		}
	}
	return false
}

// IsAssignableTo implements the reference-type half of spec §4.4's
// instanceof/checkcast: c (the runtime class of some object) is assignable
// to target if target is a superclass or an implemented interface.
func (c *Class) IsAssignableTo(target *Class) bool {
	if target.IsInterface() {
		return c.implementsInterface(target)
	}
	return c.IsSubclassOf(target)
}
