package cvm

import "fmt"

// registerJavaIoPrintStream wires the println-equivalent collector spec
// §4.4 calls tempPrint: one overload per primitive/String argument kind,
// grounded on the same register_java_lang_XXX pattern as the other
// bootstrap natives. The receiver is ignored; every overload writes
// through Engine.output, which vmcli points at os.Stdout and tests point
// at an in-memory buffer.
func registerJavaIoPrintStream(r NativeMethodRegistry) {
	r.RegisterNative("java/io/PrintStream.tempPrint(Ljava/lang/String;)V", jdkPrintStreamTempPrintString)
	r.RegisterNative("java/io/PrintStream.tempPrint(I)V", jdkPrintStreamTempPrintInt)
	r.RegisterNative("java/io/PrintStream.tempPrint(J)V", jdkPrintStreamTempPrintLong)
	r.RegisterNative("java/io/PrintStream.tempPrint(D)V", jdkPrintStreamTempPrintDouble)
	r.RegisterNative("java/io/PrintStream.tempPrint(Z)V", jdkPrintStreamTempPrintBoolean)
}

func jdkPrintStreamTempPrintString(e *Engine, this Reference, s Reference) {
	if s.IsNull() {
		e.emit("null")
		return
	}
	e.emit(s.Ptr.HostString())
}

func jdkPrintStreamTempPrintInt(e *Engine, this Reference, v Int) { e.emit(fmt.Sprintf("%d", v)) }

func jdkPrintStreamTempPrintLong(e *Engine, this Reference, v Long) { e.emit(fmt.Sprintf("%d", v)) }

func jdkPrintStreamTempPrintDouble(e *Engine, this Reference, v Double) {
	e.emit(fmt.Sprintf("%g", v))
}

func jdkPrintStreamTempPrintBoolean(e *Engine, this Reference, v Int) {
	if v != 0 {
		e.emit("true")
	} else {
		e.emit("false")
	}
}
