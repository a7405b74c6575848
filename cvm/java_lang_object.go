package cvm

// registerJavaLangObject wires java/lang/Object's three natives, grounded on
// the teacher's register_java_lang_Object (cvm/vm_natives.go family) and
// spec §4.4's native list.
func registerJavaLangObject(r NativeMethodRegistry) {
	r.RegisterNative("java/lang/Object.<init>()V", jdkObjectInit)
	r.RegisterNative("java/lang/Object.hashCode()I", jdkObjectHashCode)
	r.RegisterNative("java/lang/Object.getClass()Ljava/lang/Class;", jdkObjectGetClass)
}

// jdkObjectInit is the root of every super() chain: every guest
// constructor eventually invokespecials up to java/lang/Object.<init>()V,
// which does nothing but exist.
func jdkObjectInit(this Reference) {}

func jdkObjectHashCode(this Reference) Int {
	if this.IsNull() {
		return 0
	}
	return Int(this.Ptr.IdentityHashCode())
}

func jdkObjectGetClass(e *Engine, this Reference) (Value, error) {
	if this.IsNull() {
		return nil, e.raiseVMError(newVMError(NullPointerException, "getClass"))
	}
	class := this.Ptr.Class()
	if class == nil {
		// Arrays have no synthetic Class object (spec §4.2 Open Question);
		// mirror java/lang/Object itself rather than fail outright.
		var err error
		class, err = e.Resolve("java/lang/Object")
		if err != nil {
			return nil, err
		}
	}
	obj, err := e.classObjectFor(class)
	if err != nil {
		return nil, err
	}
	return Reference{Ptr: obj}, nil
}
