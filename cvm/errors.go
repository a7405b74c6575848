package cvm

import (
	"fmt"

	"github.com/pkg/errors"
)

// JDKExceptionClass names the handful of built-in JDK exception classes the
// engine itself raises (spec §7: "the engine throws real exception objects
// during execution, not Go errors"). Application code can throw arbitrary
// user-defined Throwable subclasses via athrow; those never pass through
// this table.
type JDKExceptionClass string

const (
	NullPointerException       JDKExceptionClass = "java/lang/NullPointerException"
	ArrayIndexOutOfBounds      JDKExceptionClass = "java/lang/ArrayIndexOutOfBoundsException"
	NegativeArraySizeException JDKExceptionClass = "java/lang/NegativeArraySizeException"
	ArithmeticException        JDKExceptionClass = "java/lang/ArithmeticException"
	ClassCastException         JDKExceptionClass = "java/lang/ClassCastException"
	OutOfMemoryError           JDKExceptionClass = "java/lang/OutOfMemoryError"
	NoSuchMethodError          JDKExceptionClass = "java/lang/NoSuchMethodError"
	NoSuchFieldError           JDKExceptionClass = "java/lang/NoSuchFieldError"
	NoClassDefFoundError       JDKExceptionClass = "java/lang/NoClassDefFoundError"
	ClassNotFoundException     JDKExceptionClass = "java/lang/ClassNotFoundException"
	ClassCircularityError      JDKExceptionClass = "java/lang/ClassCircularityError"
	UnsatisfiedLinkError       JDKExceptionClass = "java/lang/UnsatisfiedLinkError"
	VerifyError                JDKExceptionClass = "java/lang/VerifyError"
	StackOverflowError         JDKExceptionClass = "java/lang/StackOverflowError"
	InstantiationError         JDKExceptionClass = "java/lang/InstantiationError"
)

// vmError is a pre-execution failure (classfile malformed, class not found,
// link failure) reported the same way the teacher reports RPC/consensus
// failures: wrapped with github.com/pkg/errors so callers can use errors.As
// against ThrownException below to tell "engine couldn't even start" apart
// from "the guest program threw".
type vmError struct {
	class   JDKExceptionClass
	message string
}

func (e *vmError) Error() string {
	return fmt.Sprintf("%s: %s", e.class, e.message)
}

func newVMError(class JDKExceptionClass, format string, args ...interface{}) error {
	return errors.WithStack(&vmError{class: class, message: fmt.Sprintf(format, args...)})
}

// VMErrorClass extracts the JDK exception class name a vmError carries, or
// "" if err does not wrap one.
func VMErrorClass(err error) JDKExceptionClass {
	var e *vmError
	if errors.As(err, &e) {
		return e.class
	}
	return ""
}

// ThrownException wraps a live guest-visible Throwable HeapObject as it
// propagates through Go's call stack during interpretation (spec §7:
// exception propagation happens by scanning each frame's exception table,
// but Go's own function calls in the interpreter — e.g. a native method
// invoking back into the interpreter — need a Go error to unwind through).
// It is never handled by application catch blocks itself; only the
// interpreter's own frame loop inspects it.
type ThrownException struct {
	Value Reference
}

func (t *ThrownException) Error() string {
	if t.Value.IsNull() {
		return "null exception"
	}
	if t.Value.Ptr.Class() != nil {
		return "thrown " + t.Value.Ptr.Class().Name
	}
	return "thrown exception"
}

// InternalAbort marks an invariant violation the interpreter itself
// detected (spec §7: "distinct from a thrown Java exception") — a bug in
// this VM, not in the guest program. It is never caught by a guest
// exception handler and always terminates Run.
type InternalAbort struct {
	Reason string
}

func (a *InternalAbort) Error() string {
	return "internal VM error: " + a.Reason
}

func abortf(format string, args ...interface{}) error {
	return &InternalAbort{Reason: fmt.Sprintf(format, args...)}
}
