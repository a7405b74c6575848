package cvm

import "reflect"

// NativeMethodRegistry is grounded directly on the teacher's own
// cvm/vm_natives.go: a qualifier-keyed map of reflect.Value wrapping Go
// functions, registered once at startup by a family of per-JDK-package
// register_java_lang_XXX() functions (RegisterNatives below plays the
// role of the teacher's NativeMethodRegistry.RegisterNatives method).
//
// Unlike the teacher, a native function here may declare its first
// parameter as *Engine to get heap/resolver/logger access (Object.getClass
// needs the Class mirror table; Class.forName needs the resolver); the remaining parameters are Value-typed, matching argument
// order (receiver first for instance methods), exactly like the teacher's
// JDK_java_lang_StrictMath_pow(base Double, exponent Double) Double.
type NativeMethodRegistry map[string]reflect.Value

func NewNativeMethodRegistry() *NativeMethodRegistry {
	r := make(NativeMethodRegistry)
	return &r
}

func (r NativeMethodRegistry) RegisterNative(qualifier string, function interface{}) {
	r[qualifier] = reflect.ValueOf(function)
}

var engineType = reflect.TypeOf((*Engine)(nil))
var errorType = reflect.TypeOf((*error)(nil)).Elem()

func qualifierOf(method *Method) string {
	return method.Owner.Name + "." + method.Name + method.Descriptor
}

// Invoke looks up and calls the native backing method, converting args
// (which always has the receiver at index 0 for instance methods, per
// popArgs/placeArgs) into the target function's declared parameter types.
func (r NativeMethodRegistry) Invoke(e *Engine, method *Method, args []Value) (Value, error) {
	qualifier := qualifierOf(method)
	fn, ok := r[qualifier]
	if !ok {
		return nil, e.raiseVMError(newVMError(UnsatisfiedLinkError, "%s", qualifier))
	}
	ft := fn.Type()
	in := make([]reflect.Value, ft.NumIn())
	argIdx := 0
	for i := 0; i < ft.NumIn(); i++ {
		if ft.In(i) == engineType {
			in[i] = reflect.ValueOf(e)
			continue
		}
		in[i] = reflect.ValueOf(args[argIdx])
		argIdx++
	}
	out := fn.Call(in)
	return unpackNativeResult(out)
}

func unpackNativeResult(out []reflect.Value) (Value, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface().(Value), nil
	default:
		var err error
		if !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		var v Value
		if iv, ok := out[0].Interface().(Value); ok {
			v = iv
		}
		return v, err
	}
}

// RegisterBuiltinNatives wires every native this engine ships with, per
// spec §4.4's native list. Grounded on the teacher's
// NativeMethodRegistry.RegisterNatives, which calls one register_* func
// per JDK package.
func RegisterBuiltinNatives(r *NativeMethodRegistry) {
	registerJavaLangObject(*r)
	registerJavaLangSystem(*r)
	registerJavaLangClass(*r)
	registerJavaLangThrowable(*r)
	registerJavaLangString(*r)
	registerJavaIoPrintStream(*r)
}
