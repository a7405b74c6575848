package cvm

// internString returns the canonical java/lang/String instance for s,
// allocating one on first use — the JVM's string pool (JVM spec §5.1),
// simplified: every ldc of a given UTF8 constant, and every internally
// constructed message string, shares one HeapObject with that Go string
// value.
func (e *Engine) internString(s string) (*HeapObject, error) {
	if existing, ok := e.interned[s]; ok {
		return existing, nil
	}
	class, err := e.Resolve("java/lang/String")
	if err != nil {
		return nil, err
	}
	obj, err := e.Allocate(e, class)
	if err != nil {
		return nil, err
	}
	obj.hostString = s
	if e.interned == nil {
		e.interned = make(map[string]*HeapObject)
	}
	e.interned[s] = obj
	return obj, nil
}

// newThrowable allocates and initializes a Throwable of the named class
// with the given message, for engine-raised JDK exceptions (spec §7).
func (e *Engine) newThrowable(class JDKExceptionClass, message string) (*HeapObject, error) {
	c, err := e.Resolve(string(class))
	if err != nil {
		return nil, err
	}
	obj, err := e.Allocate(e, c)
	if err != nil {
		return nil, err
	}
	msgStr, err := e.internString(message)
	if err != nil {
		return nil, err
	}
	if idx, ok := c.FieldOffset("message", "Ljava/lang/String;"); ok {
		obj.fields[idx] = Reference{Ptr: msgStr}
	}
	return obj, nil
}

// raiseVMError converts a *vmError raised mid-interpretation (spec §7:
// these normally only happen pre-execution, but a few — StackOverflowError,
// OutOfMemoryError, ClassCastException et al — are also raised as guest
// exceptions once a frame is already running) into a live ThrownException.
func (e *Engine) raiseVMError(err error) error {
	class := VMErrorClass(err)
	if class == "" {
		return err
	}
	obj, allocErr := e.newThrowable(class, err.Error())
	if allocErr != nil {
		return allocErr
	}
	return &ThrownException{Value: Reference{Ptr: obj}}
}
