package cvm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/andreabergia/rjvm/classpath"
)

// Engine is the CVM facade spec §4.4 describes: one struct that composes
// the resolver, heap, call stack, handle registry, native registry and
// ambient logger, grounded on the teacher's own cvm.CVM composing
// *ExecutionEngine, *MethodArea, *Heap, *OS, *LoggerFactory and *Logger by
// embedding rather than delegation.
type Engine struct {
	*Resolver
	*Heap
	*HandleRegistry
	*CallStack
	*LoggerFactory

	Natives      *NativeMethodRegistry
	log          *Logger
	interned     map[string]*HeapObject
	classObjects map[*Class]*HeapObject
	output       io.Writer
}

// EngineOptions configures a new Engine; every field has a spec-sanctioned
// default so cmd/vmcli's naoina/toml config file only needs to set what it
// wants to override.
type EngineOptions struct {
	ClassPath *classpath.ClassPath
	HeapBytes int
	LogLevel  slog.Level
	// Output backs java/io/PrintStream.tempPrint; nil defaults to os.Stdout,
	// which is what vmcli wants and tests override with a bytes.Buffer.
	Output io.Writer
}

func NewEngine(opts EngineOptions) *Engine {
	resolver := NewResolver(opts.ClassPath)
	heap := NewHeap(opts.HeapBytes)
	handles := NewHandleRegistry()
	callStack := NewCallStack(handles)
	loggers := NewLoggerFactory(opts.LogLevel)

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	e := &Engine{
		Resolver:       resolver,
		Heap:           heap,
		HandleRegistry: handles,
		CallStack:      callStack,
		LoggerFactory:  loggers,
		log:            loggers.For("engine"),
		output:         output,
	}
	resolver.engine = e
	e.Natives = NewNativeMethodRegistry()
	RegisterBuiltinNatives(e.Natives)
	if err := e.initSystemOut(); err != nil {
		// Bootstrap classes are compile-time constants; a failure here
		// means a programming error in bootstrap.go, not a guest fault.
		panic(err)
	}
	return e
}

// emit writes one line to the engine's configured output sink, backing
// java/io/PrintStream.tempPrint.
func (e *Engine) emit(s string) {
	fmt.Fprintln(e.output, s)
}

// initSystemOut allocates the single java/io/PrintStream instance that
// backs java/lang/System.out, since there is no <clinit> bytecode to run
// it the way a real JDK would.
func (e *Engine) initSystemOut() error {
	system, err := e.Resolve("java/lang/System")
	if err != nil {
		return err
	}
	printStream, err := e.Resolve("java/io/PrintStream")
	if err != nil {
		return err
	}
	out, err := e.Allocate(e, printStream)
	if err != nil {
		return err
	}
	slot, ok := system.StaticField("out", "Ljava/io/PrintStream;")
	if !ok {
		return abortf("java/lang/System.out static slot missing")
	}
	system.SetStaticValue(slot, Reference{Ptr: out})
	return nil
}

// Roots implements RootProvider for the GC (spec §4.3): live frame
// locals/stack and the handle registry via the embedded CallStack, plus
// static fields of every loaded class and the interned-string and
// Class-mirror tables, which are reachable only from engine-owned storage
// the CallStack never walks.
func (e *Engine) Roots() []Reference {
	out := e.CallStack.Roots()
	for _, c := range e.LoadedClasses() {
		out = c.staticRefs(out)
	}
	for _, obj := range e.interned {
		if obj != nil {
			out = append(out, Reference{Ptr: obj})
		}
	}
	for _, obj := range e.classObjects {
		if obj != nil {
			out = append(out, Reference{Ptr: obj})
		}
	}
	return out
}

// Run resolves mainClassName, locates its `public static void
// main(String[])`, builds the argv array, and interprets it to
// completion. The returned exit code follows spec §6: 0 success, 1 an
// uncaught guest exception, 2 anything else (load/link error, internal
// abort).
func (e *Engine) Run(mainClassName string, args []string) (int, error) {
	class, err := e.Resolve(mainClassName)
	if err != nil {
		e.log.Error("failed to resolve main class", "class", mainClassName, "err", err)
		return 2, err
	}
	method, ok := class.DeclaredMethod("main", "([Ljava/lang/String;)V")
	if !ok || !method.IsStatic() {
		return 2, newVMError(NoSuchMethodError, "%s.main([Ljava/lang/String;)V", mainClassName)
	}

	argv, err := e.buildStringArray(args)
	if err != nil {
		return 2, err
	}

	_, err = e.invoke(method, []Value{Reference{Ptr: argv}})
	if err == nil {
		return 0, nil
	}

	var thrown *ThrownException
	if errors.As(err, &thrown) {
		e.log.Error("uncaught exception", "class", thrown.describeClass())
		return 1, err
	}
	return 2, err
}

// runClinit is called back by Resolver.initialize to run a class's
// <clinit>. It lives here, not in resolver.go, so resolver.go never needs
// to import the interpreter's invoke machinery directly — both live in
// package cvm, so this is purely an organizational seam.
func (e *Engine) runClinit(class *Class, method *Method) error {
	_, err := e.invoke(method, nil)
	return err
}

func (t *ThrownException) describeClass() string {
	if t.Value.IsNull() || t.Value.Ptr.Class() == nil {
		return "?"
	}
	return t.Value.Ptr.Class().Name
}

// buildStringArray materializes a java.lang.String[] from Go strings for
// main's argv; string materialization itself is grounded in the
// interpreter's own ldc handling (see strings.go internString).
func (e *Engine) buildStringArray(args []string) (*HeapObject, error) {
	arr, err := e.AllocateArray(e, "Ljava/lang/String;", len(args))
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		s, err := e.internString(a)
		if err != nil {
			return nil, err
		}
		arr.slots[i] = Reference{Ptr: s}
	}
	return arr, nil
}
