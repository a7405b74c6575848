package cvm

import (
	"sync"

	"github.com/fatih/set"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"

	"github.com/andreabergia/rjvm/classfile"
	"github.com/andreabergia/rjvm/classpath"
)

// rawParseCacheSize bounds the hashicorp/golang-lru cache of parsed-but
// not-yet-linked classfile.ClassFile values, keyed by internal name — a
// class re-load (e.g. Class.forName racing an in-flight load of the same
// name) reuses the parse instead of re-running the reader over the same
// bytes.
const rawParseCacheSize = 256

// Resolver is the method area of spec §4.2: Load -> Link -> Initialize,
// backed by a classpath.ClassPath for bytes and a permanent, append-only
// cache of linked *Class values (spec: "class objects live for the life
// of the VM, never evicted").
type Resolver struct {
	cp *classpath.ClassPath

	mu      sync.Mutex
	classes map[string]*Class // permanent, never evicted (spec §4.2)
	linking *set.Set          // names currently being linked, for cycle detection

	rawParses *lru.Cache // internalName -> parsed *classfile.ClassFile and its checksum

	engine *Engine // back-reference, wired by NewEngine; runs <clinit>
}

func NewResolver(cp *classpath.ClassPath) *Resolver {
	rawCache, err := lru.New(rawParseCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which rawParseCacheSize never is.
		panic(err)
	}
	r := &Resolver{
		cp:        cp,
		classes:   make(map[string]*Class),
		linking:   set.New(),
		rawParses: rawCache,
	}
	registerBootstrapClasses(r)
	return r
}

// LoadedClasses returns a snapshot of every class currently in the
// permanent cache, for GC root enumeration over static fields (spec §4.3).
func (r *Resolver) LoadedClasses() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	return out
}

// Resolve returns the fully linked and initialized Class for internalName,
// loading, linking, and running <clinit> as needed (spec §4.2's three
// stages, collapsed into one entry point the way invokestatic/new/getstatic
// trigger "active use").
func (r *Resolver) Resolve(internalName string) (*Class, error) {
	class, err := r.link(internalName)
	if err != nil {
		return nil, err
	}
	if err := r.initialize(class); err != nil {
		return nil, err
	}
	return class, nil
}

// Link performs Load+Link without running <clinit>; exported for callers
// (e.g. instanceof/checkcast target resolution) that need a Class but must
// not trigger active use.
func (r *Resolver) Link(internalName string) (*Class, error) {
	return r.link(internalName)
}

func (r *Resolver) link(internalName string) (*Class, error) {
	r.mu.Lock()
	if c, ok := r.classes[internalName]; ok {
		r.mu.Unlock()
		return c, nil
	}
	if r.linking.Has(internalName) {
		r.mu.Unlock()
		return nil, newVMError(ClassCircularityError, "%s", internalName)
	}
	r.linking.Add(internalName)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.linking.Remove(internalName)
		r.mu.Unlock()
	}()

	file, checksum, err := r.load(internalName)
	if err != nil {
		return nil, err
	}

	class := &Class{
		Name:        internalName,
		AccessFlags: file.AccessFlags,
		SourceFile:  file.SourceFile,
		file:        file,
		checksum:    checksum,
	}

	if file.SuperClass != "" {
		super, err := r.link(file.SuperClass)
		if err != nil {
			return nil, errors.Wrapf(err, "linking superclass %s of %s", file.SuperClass, internalName)
		}
		class.Super = super
	}
	class.Interfaces = make([]*Class, 0, len(file.Interfaces))
	for _, ifaceName := range file.Interfaces {
		iface, err := r.link(ifaceName)
		if err != nil {
			return nil, errors.Wrapf(err, "linking interface %s of %s", ifaceName, internalName)
		}
		class.Interfaces = append(class.Interfaces, iface)
	}

	buildFieldLayout(class, file)
	buildStaticStorage(class, file)
	if err := buildMethods(class, file); err != nil {
		return nil, err
	}
	buildVTable(class)

	r.mu.Lock()
	if existing, ok := r.classes[internalName]; ok {
		// Lost a race with a concurrent link of the same name; keep the
		// first winner so every caller observes one Class per name.
		r.mu.Unlock()
		return existing, nil
	}
	r.classes[internalName] = class
	r.mu.Unlock()
	return class, nil
}

func (r *Resolver) load(internalName string) (*classfile.ClassFile, [20]byte, error) {
	type rawParse struct {
		file *classfile.ClassFile
		sum  [20]byte
	}
	if cached, ok := r.rawParses.Get(internalName); ok {
		p := cached.(rawParse)
		return p.file, p.sum, nil
	}

	data, _, err := r.cp.Lookup(internalName)
	if err != nil {
		if errors.Is(err, classpath.ErrClassNotFound) {
			return nil, [20]byte{}, newVMError(NoClassDefFoundError, "%s", internalName)
		}
		return nil, [20]byte{}, errors.Wrapf(err, "loading %s", internalName)
	}

	file, err := classfile.Parse(data)
	if err != nil {
		return nil, [20]byte{}, errors.Wrapf(newVMError(VerifyError, "%s: %v", internalName, err), "parsing %s", internalName)
	}
	h := ripemd160.New()
	_, _ = h.Write(data)
	var sum [20]byte
	copy(sum[:], h.Sum(nil))
	r.rawParses.Add(internalName, rawParse{file: file, sum: sum})
	return file, sum, nil
}

func buildFieldLayout(class *Class, file *classfile.ClassFile) {
	layout := &fieldLayout{index: make(map[string]int)}
	if class.Super != nil {
		layout.slots = append(layout.slots, class.Super.fieldLayout.slots...)
		for k, v := range class.Super.fieldLayout.index {
			layout.index[k] = v
		}
	}
	for _, f := range file.Fields {
		if f.AccessFlags.IsStatic() {
			continue
		}
		slot := fieldSlot{Name: f.Name, Descriptor: f.Descriptor, DeclaringClass: class}
		layout.index[f.Name+":"+f.Descriptor] = len(layout.slots)
		layout.slots = append(layout.slots, slot)
	}
	class.fieldLayout = layout
}

func buildStaticStorage(class *Class, file *classfile.ClassFile) {
	class.staticIndex = make(map[string]int)
	for _, f := range file.Fields {
		if !f.AccessFlags.IsStatic() {
			continue
		}
		idx := len(class.staticValues)
		v := zeroValueFor(f.Descriptor)
		if f.HasConstantValue {
			if cv, err := constantValueOf(file, f); err == nil {
				v = cv
			}
		}
		class.staticValues = append(class.staticValues, v)
		class.staticIndex[f.Name+":"+f.Descriptor] = idx
	}
}

func constantValueOf(file *classfile.ClassFile, f classfile.Field) (Value, error) {
	if f.Descriptor == "Ljava/lang/String;" {
		// String constants are materialized lazily by ldc at first use
		// in this engine (spec §4.4); a ConstantValue attribute on a
		// static String field still only records the UTF8, so the zero
		// value stands until <clinit>, if any, assigns it.
		return Null, nil
	}
	c, err := file.ConstantPool.Get(f.ConstantValueIndex)
	if err != nil {
		return nil, err
	}
	switch f.Descriptor {
	case "J":
		return Long(c.Long), nil
	case "F":
		return Float(c.Float), nil
	case "D":
		return Double(c.Double), nil
	default:
		return Int(c.Integer), nil
	}
}

func buildMethods(class *Class, file *classfile.ClassFile) error {
	class.methods = make(map[string]*Method, len(file.Methods))
	for i := range file.Methods {
		raw := &file.Methods[i]
		m := &Method{Owner: class, Raw: raw, Name: raw.Name, Descriptor: raw.Descriptor, Parsed: raw.Parsed}
		class.methods[m.signature()] = m
	}
	return nil
}

// buildVTable implements spec §4.2's virtual dispatch table construction:
// copy the superclass's vtable, then override any slot whose name+
// descriptor matches a non-static, non-private method declared here, and
// append any brand-new virtual methods this class introduces.
func buildVTable(class *Class) {
	class.vtableIndex = make(map[string]int)
	if class.Super != nil {
		class.vtable = append(class.vtable, class.Super.vtable...)
		for k, v := range class.Super.vtableIndex {
			class.vtableIndex[k] = v
		}
	}
	for _, m := range class.methods {
		if m.IsStatic() || m.Raw.AccessFlags&classfile.MethodPrivate != 0 {
			continue
		}
		sig := m.signature()
		if idx, ok := class.vtableIndex[sig]; ok {
			class.vtable[idx] = m
		} else {
			class.vtableIndex[sig] = len(class.vtable)
			class.vtable = append(class.vtable, m)
		}
	}
}

// initialize runs <clinit> exactly once per class, per spec §4.2's
// Uninitialized -> Initializing -> Initialized/Errored state machine. The
// superclass is always initialized first.
func (r *Resolver) initialize(class *Class) error {
	if class.Super != nil {
		if err := r.initialize(class.Super); err != nil {
			return err
		}
	}
	switch class.State() {
	case StateInitialized:
		return nil
	case StateErrored:
		return newVMError(NoClassDefFoundError, "%s (previous initialization failed)", class.Name)
	case StateInitializing:
		// Re-entrant: <clinit> itself (directly or transitively) triggered
		// active use of class again. Spec §4.2 allows this to proceed
		// rather than deadlock, since the engine is single-threaded.
		return nil
	}

	class.setState(StateInitializing)
	clinit, ok := class.DeclaredMethod("<clinit>", "()V")
	if !ok {
		class.setState(StateInitialized)
		return nil
	}
	if err := r.engine.runClinit(class, clinit); err != nil {
		class.initErr = err
		class.setState(StateErrored)
		return err
	}
	class.setState(StateInitialized)
	return nil
}
