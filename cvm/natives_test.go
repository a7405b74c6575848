package cvm

import (
	"strings"
	"testing"
)

// TestTempPrintWritesToEngineOutput exercises the natives.go reflection
// dispatch path end to end for java/io/PrintStream.tempPrint, invoked the
// same way invokevirtual would (looked up by qualifier, called via
// Natives.Invoke) without needing a constant pool.
func TestTempPrintWritesToEngineOutput(t *testing.T) {
	e, out := newTestEngine(t, 1<<20)
	system, err := e.Resolve("java/lang/System")
	if err != nil {
		t.Fatalf("resolving java/lang/System: %v", err)
	}
	slot, ok := system.StaticField("out", "Ljava/io/PrintStream;")
	if !ok {
		t.Fatal("System.out static slot missing")
	}
	printStreamRef := system.StaticValue(slot).(Reference)
	if printStreamRef.IsNull() {
		t.Fatal("System.out was not initialized")
	}

	printStream := printStreamRef.Ptr.Class()
	method, ok := printStream.DeclaredMethod("tempPrint", "(Ljava/lang/String;)V")
	if !ok {
		t.Fatal("tempPrint(String) not registered")
	}

	msg, err := e.internString("hello, cvm")
	if err != nil {
		t.Fatalf("internString: %v", err)
	}
	if _, err := e.invoke(method, []Value{printStreamRef, Reference{Ptr: msg}}); err != nil {
		t.Fatalf("invoke tempPrint: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello, cvm" {
		t.Fatalf("output = %q, want %q", got, "hello, cvm")
	}
}

// TestObjectHashCodeIsIdentityHash confirms Object.hashCode dispatches
// through NativeMethodRegistry.Invoke and returns the heap's own identity
// hash, not a content hash.
func TestObjectHashCodeIsIdentityHash(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}
	obj, err := e.Allocate(e, object)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	method, ok := object.DeclaredMethod("hashCode", "()I")
	if !ok {
		t.Fatal("hashCode not registered")
	}
	result, err := e.invoke(method, []Value{Reference{Ptr: obj}})
	if err != nil {
		t.Fatalf("invoke hashCode: %v", err)
	}
	if got := result.(Int); int32(got) != obj.IdentityHashCode() {
		t.Fatalf("hashCode() = %d, want identity hash %d", got, obj.IdentityHashCode())
	}
}

// TestClassForNameResolvesAndMirrors exercises Class.forName end to end:
// dotted-name conversion, resolution, and Class-object mirroring.
func TestClassForNameResolvesAndMirrors(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	classClass, err := e.Resolve("java/lang/Class")
	if err != nil {
		t.Fatalf("resolving java/lang/Class: %v", err)
	}
	forName, ok := classClass.DeclaredMethod("forName", "(Ljava/lang/String;)Ljava/lang/Class;")
	if !ok {
		t.Fatal("forName not registered")
	}
	name, err := e.internString("java.lang.Object")
	if err != nil {
		t.Fatalf("internString: %v", err)
	}
	result, err := e.invoke(forName, []Value{Reference{Ptr: name}})
	if err != nil {
		t.Fatalf("invoke forName: %v", err)
	}
	mirror := result.(Reference).Ptr
	if mirror.Class() != classClass {
		t.Fatalf("forName result's runtime class = %s, want java/lang/Class", mirror.Class().Name)
	}
}

// TestSystemArraycopyBoundsCheck confirms out-of-range copies raise
// ArrayIndexOutOfBoundsException rather than corrupting the heap.
func TestSystemArraycopyBoundsCheck(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	system, err := e.Resolve("java/lang/System")
	if err != nil {
		t.Fatalf("resolving java/lang/System: %v", err)
	}
	arraycopy, ok := system.DeclaredMethod("arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V")
	if !ok {
		t.Fatal("arraycopy not registered")
	}
	src, err := e.AllocateArray(e, "I", 3)
	if err != nil {
		t.Fatalf("allocate src: %v", err)
	}
	dst, err := e.AllocateArray(e, "I", 3)
	if err != nil {
		t.Fatalf("allocate dst: %v", err)
	}

	_, err = e.invoke(arraycopy, []Value{
		Reference{Ptr: src}, Int(0), Reference{Ptr: dst}, Int(0), Int(10),
	})
	var thrown *ThrownException
	if !isThrown(err, &thrown) {
		t.Fatalf("arraycopy overflow error = %v, want a thrown ArrayIndexOutOfBoundsException", err)
	}
	if got := thrown.describeClass(); got != string(ArrayIndexOutOfBounds) {
		t.Fatalf("thrown class = %s, want %s", got, ArrayIndexOutOfBounds)
	}
}

// TestStringNativesAreRegistered confirms length/hashCode/toString are
// wired to real implementations rather than left declared-but-unregistered
// (which would throw UnsatisfiedLinkError on first call).
func TestStringNativesAreRegistered(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	s, err := e.internString("cvm")
	if err != nil {
		t.Fatalf("internString: %v", err)
	}
	stringClass := s.Class()

	length, ok := stringClass.DeclaredMethod("length", "()I")
	if !ok {
		t.Fatal("length not registered")
	}
	lengthResult, err := e.invoke(length, []Value{Reference{Ptr: s}})
	if err != nil {
		t.Fatalf("invoke length: %v", err)
	}
	if got := lengthResult.(Int); got != 3 {
		t.Fatalf("length() = %d, want 3", got)
	}

	hashCode, ok := stringClass.VirtualMethod("hashCode", "()I")
	if !ok {
		t.Fatal("hashCode not registered")
	}
	if hashCode.Owner != stringClass {
		t.Fatalf("String.hashCode vtable slot resolved to %s, want java/lang/String's own override", hashCode.Owner.Name)
	}
	hashResult, err := e.invoke(hashCode, []Value{Reference{Ptr: s}})
	if err != nil {
		t.Fatalf("invoke hashCode: %v", err)
	}
	var want int32
	for i := 0; i < len("cvm"); i++ {
		want = 31*want + int32("cvm"[i])
	}
	if got := hashResult.(Int); int32(got) != want {
		t.Fatalf("hashCode() = %d, want %d", got, want)
	}

	toString, _ := stringClass.DeclaredMethod("toString", "()Ljava/lang/String;")
	toStringResult, err := e.invoke(toString, []Value{Reference{Ptr: s}})
	if err != nil {
		t.Fatalf("invoke toString: %v", err)
	}
	if toStringResult.(Reference).Ptr != s {
		t.Fatal("toString() did not return the receiver")
	}
}

// TestOutOfMemoryErrorIsBootstrapped confirms the JDK error classified by
// isJDKError as an Error is also seeded, so raiseVMError can actually
// resolve and allocate it instead of failing to Resolve mid-collection.
func TestOutOfMemoryErrorIsBootstrapped(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	class, err := e.Resolve(string(OutOfMemoryError))
	if err != nil {
		t.Fatalf("resolving %s: %v", OutOfMemoryError, err)
	}
	errorClass, err := e.Resolve("java/lang/Error")
	if err != nil {
		t.Fatalf("resolving java/lang/Error: %v", err)
	}
	if !class.IsSubclassOf(errorClass) {
		t.Fatalf("%s is not a subclass of java/lang/Error", OutOfMemoryError)
	}
}
