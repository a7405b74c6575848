package cvm

// registerJavaLangString wires the three natives declared on the
// bootstrap java/lang/String class in bootstrap.go. There is no char[]
// field backing a String instance (see HeapObject.hostString), so these
// all operate directly on the host Go string rather than array bytecode.
func registerJavaLangString(r NativeMethodRegistry) {
	r.RegisterNative("java/lang/String.length()I", jdkStringLength)
	r.RegisterNative("java/lang/String.hashCode()I", jdkStringHashCode)
	r.RegisterNative("java/lang/String.toString()Ljava/lang/String;", jdkStringToString)
}

func jdkStringLength(this Reference) Int {
	if this.IsNull() {
		return 0
	}
	return Int(len(this.Ptr.HostString()))
}

// jdkStringHashCode implements String.hashCode's documented formula,
// s[0]*31^(n-1) + s[1]*31^(n-2) + ... + s[n-1], over the host string's
// bytes rather than UTF-16 code units (there is no char[] representation
// here to iterate instead).
func jdkStringHashCode(this Reference) Int {
	if this.IsNull() {
		return 0
	}
	var h int32
	for i := 0; i < len(this.Ptr.HostString()); i++ {
		h = 31*h + int32(this.Ptr.HostString()[i])
	}
	return Int(h)
}

func jdkStringToString(this Reference) Value {
	return this
}
