package cvm

import (
	"testing"

	"github.com/andreabergia/rjvm/classfile"
)

// TestExceptionCaughtByHandler exercises the exception-table unwinding
// path end to end: arraylength on a null reference raises a real
// NullPointerException, and a catch-all handler (CatchType 0, the same
// encoding javac emits for compiled finally blocks) intercepts it.
func TestExceptionCaughtByHandler(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	code := []byte{
		opAconstNull, opArraylength, opIreturn, // pc 0..2, protected
		opPop, opIconst1, opIreturn, // pc 3: handler
	}
	class := buildTestClass(t, "test/CatchAll", object, testMethod{
		name:       "run",
		descriptor: "()I",
		static:     true,
		maxStack:   2,
		maxLocals:  0,
		code:       code,
		exceptionTable: []classfile.ExceptionTableEntry{
			{StartPC: 0, EndPC: 3, HandlerPC: 3, CatchType: 0},
		},
	})
	method, _ := class.DeclaredMethod("run", "()I")

	result, err := e.invoke(method, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := result.(Int); got != 1 {
		t.Fatalf("run() = %d, want 1 (handler ran)", got)
	}
}

// TestExceptionCaughtWhenThrowingInstructionEndsRegion is the canonical
// try { throw new E(); } catch (E e) {...} shape: the faulting
// instruction is the very last one in its protected region, so the
// exception table's EndPC equals the PC just past it. A handler lookup
// keyed on the post-dispatch PC would see pc >= EndPC and miss it.
func TestExceptionCaughtWhenThrowingInstructionEndsRegion(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	code := []byte{
		opAconstNull, opArraylength, // pc 0..1, protected, fault at pc 1
		opPop, opIconst1, opIreturn, // pc 2: handler
	}
	class := buildTestClass(t, "test/CatchExact", object, testMethod{
		name:       "run",
		descriptor: "()I",
		static:     true,
		maxStack:   2,
		maxLocals:  0,
		code:       code,
		exceptionTable: []classfile.ExceptionTableEntry{
			{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: 0},
		},
	})
	method, _ := class.DeclaredMethod("run", "()I")

	result, err := e.invoke(method, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := result.(Int); got != 1 {
		t.Fatalf("run() = %d, want 1 (handler ran)", got)
	}
}

// TestExceptionUncaughtPropagates confirms an exception outside every
// protected range unwinds all the way out of invoke as a *ThrownException.
func TestExceptionUncaughtPropagates(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	code := []byte{opAconstNull, opArraylength, opIreturn}
	class := buildTestClass(t, "test/Uncaught", object, testMethod{
		name:       "run",
		descriptor: "()I",
		static:     true,
		maxStack:   2,
		maxLocals:  0,
		code:       code,
	})
	method, _ := class.DeclaredMethod("run", "()I")

	_, err = e.invoke(method, nil)
	var thrown *ThrownException
	if !isThrown(err, &thrown) {
		t.Fatalf("invoke error = %v, want *ThrownException", err)
	}
	if VMErrorClass(err) != "" {
		t.Fatalf("expected a live thrown exception, not a bare vmError: %v", err)
	}
	if got := thrown.describeClass(); got != string(NullPointerException) {
		t.Fatalf("thrown class = %s, want %s", got, NullPointerException)
	}
}

func isThrown(err error, target **ThrownException) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(*ThrownException); ok {
		*target = t
		return true
	}
	return false
}
