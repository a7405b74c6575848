package cvm

// registerJavaLangClass wires java/lang/Class.forName and newInstance,
// grounded on the teacher's register_java_lang_Class.
func registerJavaLangClass(r NativeMethodRegistry) {
	r.RegisterNative("java/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class;", jdkClassForName)
	r.RegisterNative("java/lang/Class.newInstance()Ljava/lang/Object;", jdkClassNewInstance)
	r.RegisterNative("java/lang/Class.getName()Ljava/lang/String;", jdkClassGetName)
}

func jdkClassForName(e *Engine, name Reference) (Value, error) {
	if name.IsNull() {
		return nil, e.raiseVMError(newVMError(NullPointerException, "Class.forName"))
	}
	internalName := hostNameToInternal(name.Ptr.HostString())
	class, err := e.Resolve(internalName)
	if err != nil {
		if VMErrorClass(err) == NoClassDefFoundError {
			return nil, e.raiseVMError(newVMError(ClassNotFoundException, "%s", internalName))
		}
		return nil, err
	}
	obj, err := e.classObjectFor(class)
	if err != nil {
		return nil, err
	}
	return Reference{Ptr: obj}, nil
}

func hostNameToInternal(binaryName string) string {
	out := []byte(binaryName)
	for i, c := range out {
		if c == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

func jdkClassNewInstance(e *Engine, this Reference) (Value, error) {
	if this.IsNull() {
		return nil, e.raiseVMError(newVMError(NullPointerException, "Class.newInstance"))
	}
	class := this.Ptr.Mirrors()
	if class == nil {
		return nil, abortf("Class.newInstance: not a mirrored class object")
	}
	ctor, ok := findMethodInHierarchy(class, "<init>", "()V")
	if !ok {
		return nil, e.raiseVMError(newVMError(InstantiationError, "%s has no no-arg constructor", class.Name))
	}
	obj, err := e.Allocate(e, class)
	if err != nil {
		return nil, err
	}
	if _, err := e.invoke(ctor, []Value{Reference{Ptr: obj}}); err != nil {
		return nil, err
	}
	return Reference{Ptr: obj}, nil
}

func jdkClassGetName(e *Engine, this Reference) (Value, error) {
	if this.IsNull() || this.Ptr.Mirrors() == nil {
		return nil, abortf("Class.getName: not a mirrored class object")
	}
	binaryName := this.Ptr.Mirrors().Name
	for i := 0; i < len(binaryName); i++ {
		if binaryName[i] == '/' {
			binaryName = binaryName[:i] + "." + binaryName[i+1:]
		}
	}
	obj, err := e.internString(binaryName)
	if err != nil {
		return nil, err
	}
	return Reference{Ptr: obj}, nil
}
