package cvm

import "testing"

// TestVirtualDispatchPicksOverride confirms VirtualMethod resolves against
// the runtime class's vtable slot, not the static/declared receiver type
// — the difference invokevirtual depends on for overriding.
func TestVirtualDispatchPicksOverride(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	base := buildTestClass(t, "test/Base", object, testMethod{
		name: "greet", descriptor: "()I", maxStack: 1, maxLocals: 1,
		code: []byte{opIconst1, opIreturn},
	})
	derived := buildTestClass(t, "test/Derived", base, testMethod{
		name: "greet", descriptor: "()I", maxStack: 1, maxLocals: 1,
		code: []byte{opIconst2, opIreturn},
	})

	m, ok := derived.VirtualMethod("greet", "()I")
	if !ok {
		t.Fatal("greet not found via vtable")
	}
	if m.Owner != derived {
		t.Fatalf("VirtualMethod on Derived resolved to %s, want test/Derived", m.Owner.Name)
	}

	result, err := e.invoke(m, []Value{Reference{}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := result.(Int); got != 2 {
		t.Fatalf("Derived.greet() = %d, want 2", got)
	}

	baseMethod, ok := base.VirtualMethod("greet", "()I")
	if !ok {
		t.Fatal("greet not found on Base")
	}
	if baseMethod.Owner != base {
		t.Fatalf("VirtualMethod on Base resolved to %s, want test/Base", baseMethod.Owner.Name)
	}
}

// TestFindMethodInHierarchyIsExactOwner confirms exact-owner lookup
// (invokestatic/invokespecial's rule) finds an inherited method but keeps
// walking Super, unlike VirtualMethod's vtable-slot semantics.
func TestFindMethodInHierarchyIsExactOwner(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}
	base := buildTestClass(t, "test/Base2", object, testMethod{
		name: "helper", descriptor: "()I", static: true, maxStack: 1,
		code: []byte{opIconst5, opIreturn},
	})
	derived := buildTestClass(t, "test/Derived2", base, testMethod{
		name: "other", descriptor: "()V", static: true, code: []byte{opReturn},
	})

	m, ok := findMethodInHierarchy(derived, "helper", "()I")
	if !ok {
		t.Fatal("helper not found through Super chain")
	}
	if m.Owner != base {
		t.Fatalf("helper resolved to %s, want test/Base2 (declaring class)", m.Owner.Name)
	}
}
