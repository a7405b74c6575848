package cvm

// registerJavaLangThrowable wires the four natives declared on the
// bootstrap java/lang/Throwable class in bootstrap.go. Grounded on the
// teacher's register_java_lang_Throwable, adapted since there is no real
// JDK StackTraceElement[] to materialize here.
func registerJavaLangThrowable(r NativeMethodRegistry) {
	r.RegisterNative("java/lang/Throwable.<init>()V", jdkThrowableInit)
	r.RegisterNative("java/lang/Throwable.<init>(Ljava/lang/String;)V", jdkThrowableInitWithMessage)
	r.RegisterNative("java/lang/Throwable.fillInStackTrace()Ljava/lang/Throwable;", jdkThrowableFillInStackTrace)
	r.RegisterNative("java/lang/Throwable.getMessage()Ljava/lang/String;", jdkThrowableGetMessage)
}

// jdkThrowableInit and jdkThrowableInitWithMessage are the constructors
// every guest Exception/Error subclass's super() chain eventually reaches
// (Exception, RuntimeException and Error declare no <init> of their own
// and are found by walking up to Throwable — see findMethodInHierarchy).
func jdkThrowableInit(this Reference) {}

func jdkThrowableInitWithMessage(this Reference, message Reference) error {
	if this.IsNull() {
		return nil
	}
	idx, ok := this.Ptr.Class().FieldOffset("message", "Ljava/lang/String;")
	if !ok {
		return abortf("java/lang/Throwable.<init>(String): message field missing")
	}
	this.Ptr.fields[idx] = message
	return nil
}

// jdkThrowableFillInStackTrace logs the current call stack at debug level
// and returns `this`, matching real fillInStackTrace's contract of
// returning the receiver. It does not materialize a StackTraceElement[]
// and stores nothing in the exception object.
func jdkThrowableFillInStackTrace(e *Engine, this Reference) (Value, error) {
	if this.IsNull() {
		return nil, e.raiseVMError(newVMError(NullPointerException, "fillInStackTrace"))
	}
	e.log.Debug("exception raised", "class", classNameOf(this.Ptr), "trace", e.CallStack.StackTrace())
	return this, nil
}

func jdkThrowableGetMessage(this Reference) (Value, error) {
	if this.IsNull() {
		return nil, nil
	}
	class := this.Ptr.Class()
	idx, ok := class.FieldOffset("message", "Ljava/lang/String;")
	if !ok {
		return Null, nil
	}
	return this.Ptr.fields[idx], nil
}
