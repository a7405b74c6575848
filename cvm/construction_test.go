package cvm

import "testing"

// TestObjectConstructorResolvesSuperChain confirms every guest
// constructor's invokespecial-to-super eventually bottoms out on a real,
// callable java/lang/Object.<init>()V rather than NoSuchMethodError —
// synthesized bootstrap classes previously had no constructor at all.
func TestObjectConstructorResolvesSuperChain(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	derived := buildTestClass(t, "test/NoOwnInit", object, testMethod{
		name: "noop", descriptor: "()V", code: []byte{opReturn},
	})

	ctor, ok := findMethodInHierarchy(derived, "<init>", "()V")
	if !ok {
		t.Fatal("<init>()V not found by walking up to java/lang/Object")
	}
	if ctor.Owner != object {
		t.Fatalf("<init>()V resolved to %s, want java/lang/Object", ctor.Owner.Name)
	}

	obj, err := e.Allocate(e, derived)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := e.invoke(ctor, []Value{Reference{Ptr: obj}}); err != nil {
		t.Fatalf("invoke <init>: %v", err)
	}
}

// TestThrowableConstructorSetsMessage confirms the message-taking
// Throwable constructor, reached the same way a guest Exception
// subclass's super(msg) call would reach it, actually stores the message
// field rather than leaving it unset.
func TestThrowableConstructorSetsMessage(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	npe, err := e.Resolve(string(NullPointerException))
	if err != nil {
		t.Fatalf("resolving %s: %v", NullPointerException, err)
	}

	ctor, ok := findMethodInHierarchy(npe, "<init>", "(Ljava/lang/String;)V")
	if !ok {
		t.Fatal("<init>(String)V not found by walking up to java/lang/Throwable")
	}

	obj, err := e.Allocate(e, npe)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	msg, err := e.internString("boom")
	if err != nil {
		t.Fatalf("internString: %v", err)
	}
	if _, err := e.invoke(ctor, []Value{Reference{Ptr: obj}, Reference{Ptr: msg}}); err != nil {
		t.Fatalf("invoke <init>(String): %v", err)
	}

	getMessage, ok := npe.VirtualMethod("getMessage", "()Ljava/lang/String;")
	if !ok {
		t.Fatal("getMessage not found")
	}
	result, err := e.invoke(getMessage, []Value{Reference{Ptr: obj}})
	if err != nil {
		t.Fatalf("invoke getMessage: %v", err)
	}
	if got := result.(Reference).Ptr.HostString(); got != "boom" {
		t.Fatalf("getMessage() = %q, want %q", got, "boom")
	}
}
