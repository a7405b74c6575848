package cvm

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// sumToBytecode implements:
//
//	static int sumTo(int n) {
//	    int sum = 0;
//	    for (int i = 1; i <= n; i++) sum += i;
//	    return sum;
//	}
//
// hand-assembled to exercise the loop/branch/iinc opcodes together, the
// same construct-real-bytecode-by-hand approach
// daimatz-gojvm__instructions_test.go uses.
func sumToBytecode() []byte {
	return []byte{
		opIconst0, opIstore1, // sum = 0
		opIconst1, opIstore2, // i = 1
		opIload2, opIload0, opIfIcmpgt, 0x00, 0x0d, // if (i > n) goto end
		opIload1, opIload2, opIadd, opIstore1, // sum += i
		opIinc, 0x02, 0x01, // i++
		opGoto, 0xff, 0xf4, // goto loop
		opIload1, opIreturn, // end: return sum
	}
}

func TestInterpreterSumLoop(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}

	class := buildTestClass(t, "test/SumLoop", object, testMethod{
		name:       "sumTo",
		descriptor: "(I)I",
		static:     true,
		maxStack:   2,
		maxLocals:  3,
		code:       sumToBytecode(),
	})
	method, ok := class.DeclaredMethod("sumTo", "(I)I")
	if !ok {
		t.Fatal("sumTo not found")
	}

	result, err := e.invoke(method, []Value{Int(10)})
	if err != nil {
		t.Fatalf("invoke: %v\n%s", err, spew.Sdump(class))
	}
	if got := result.(Int); got != 55 {
		t.Fatalf("sumTo(10) = %d, want 55", got)
	}
}

func TestInterpreterSumLoopZero(t *testing.T) {
	e, _ := newTestEngine(t, 1<<20)
	object, err := e.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("resolving java/lang/Object: %v", err)
	}
	class := buildTestClass(t, "test/SumLoop2", object, testMethod{
		name:       "sumTo",
		descriptor: "(I)I",
		static:     true,
		maxStack:   2,
		maxLocals:  3,
		code:       sumToBytecode(),
	})
	method, _ := class.DeclaredMethod("sumTo", "(I)I")

	result, err := e.invoke(method, []Value{Int(0)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := result.(Int); got != 0 {
		t.Fatalf("sumTo(0) = %d, want 0", got)
	}
}
