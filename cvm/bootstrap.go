package cvm

import "github.com/andreabergia/rjvm/classfile"

// Bootstrap classes. Spec §8 notes there is no real JDK on the classpath:
// scenario tests (and any embedder) construct Class/Method graphs
// directly rather than requiring javac output for java.lang.*. The
// handful of classes the engine itself depends on — Object as the
// universal superclass, Throwable/Exception/Error for athrow and the
// built-in JDK exceptions listed in errors.go, String for ldc and
// toString-style natives, and Class for Class.forName/getClass — are
// synthesized here and seeded directly into the Resolver's permanent
// cache, bypassing classfile.Parse entirely (there are no bytes to
// parse). Because Resolver.link answers from that cache before it consults
// the classpath, a class file on the classpath with one of these names is
// never loaded.
func registerBootstrapClasses(r *Resolver) {
	object := newBootstrapClass("java/lang/Object", nil, nil, []nativeSpec{
		{name: "<init>", descriptor: "()V"},
		{name: "hashCode", descriptor: "()I"},
		{name: "getClass", descriptor: "()Ljava/lang/Class;"},
	})

	class_ := newBootstrapClass("java/lang/Class", object, []fieldSlot{
		{Name: "name", Descriptor: "Ljava/lang/String;"},
	}, []nativeSpec{
		{name: "getName", descriptor: "()Ljava/lang/String;"},
		{name: "newInstance", descriptor: "()Ljava/lang/Object;"},
		{name: "forName", descriptor: "(Ljava/lang/String;)Ljava/lang/Class;", static: true},
	})

	throwable := newBootstrapClass("java/lang/Throwable", object, []fieldSlot{
		{Name: "message", Descriptor: "Ljava/lang/String;"},
		{Name: "cause", Descriptor: "Ljava/lang/Throwable;"},
	}, []nativeSpec{
		{name: "<init>", descriptor: "()V"},
		{name: "<init>", descriptor: "(Ljava/lang/String;)V"},
		{name: "fillInStackTrace", descriptor: "()Ljava/lang/Throwable;"},
		{name: "getMessage", descriptor: "()Ljava/lang/String;"},
	})

	exception := newBootstrapClass("java/lang/Exception", throwable, nil, nil)
	runtimeException := newBootstrapClass("java/lang/RuntimeException", exception, nil, nil)
	errorClass := newBootstrapClass("java/lang/Error", throwable, nil, nil)

	stringClass := newBootstrapClass("java/lang/String", object, nil, []nativeSpec{
		{name: "length", descriptor: "()I"},
		{name: "hashCode", descriptor: "()I"},
		{name: "toString", descriptor: "()Ljava/lang/String;"},
	})

	printStream := newBootstrapClass("java/io/PrintStream", object, nil, []nativeSpec{
		{name: "tempPrint", descriptor: "(Ljava/lang/String;)V"},
		{name: "tempPrint", descriptor: "(I)V"},
		{name: "tempPrint", descriptor: "(J)V"},
		{name: "tempPrint", descriptor: "(D)V"},
		{name: "tempPrint", descriptor: "(Z)V"},
	})

	system := newBootstrapClass("java/lang/System", object, nil, []nativeSpec{
		{name: "arraycopy", descriptor: "(Ljava/lang/Object;ILjava/lang/Object;II)V", static: true},
		{name: "identityHashCode", descriptor: "(Ljava/lang/Object;)I", static: true},
		{name: "currentTimeMillis", descriptor: "()J", static: true},
		{name: "nanoTime", descriptor: "()J", static: true},
	})
	addStaticField(system, "out", "Ljava/io/PrintStream;")

	seed := []*Class{object, class_, throwable, exception, runtimeException, errorClass, stringClass, printStream, system}
	for _, name := range []JDKExceptionClass{
		NullPointerException, ArrayIndexOutOfBounds, NegativeArraySizeException,
		ArithmeticException, ClassCastException, OutOfMemoryError, NoSuchMethodError, NoSuchFieldError,
		NoClassDefFoundError, ClassNotFoundException, ClassCircularityError,
		UnsatisfiedLinkError, VerifyError, StackOverflowError, InstantiationError,
	} {
		var super *Class
		if isJDKError(name) {
			super = errorClass
		} else {
			super = runtimeException
		}
		seed = append(seed, newBootstrapClass(string(name), super, nil, nil))
	}

	for _, c := range seed {
		c.setState(StateInitialized)
		r.classes[c.Name] = c
	}
}

func isJDKError(name JDKExceptionClass) bool {
	switch name {
	case OutOfMemoryError, NoSuchMethodError, NoSuchFieldError, NoClassDefFoundError,
		ClassCircularityError, UnsatisfiedLinkError, VerifyError, StackOverflowError,
		InstantiationError:
		return true
	default:
		return false
	}
}

type nativeSpec struct {
	name       string
	descriptor string
	static     bool
}

func newBootstrapClass(name string, super *Class, fields []fieldSlot, natives []nativeSpec) *Class {
	c := &Class{
		Name:  name,
		Super: super,
	}

	layout := &fieldLayout{index: make(map[string]int)}
	if super != nil {
		layout.slots = append(layout.slots, super.fieldLayout.slots...)
		for k, v := range super.fieldLayout.index {
			layout.index[k] = v
		}
	}
	for _, f := range fields {
		f.DeclaringClass = c
		layout.index[f.Name+":"+f.Descriptor] = len(layout.slots)
		layout.slots = append(layout.slots, f)
	}
	c.fieldLayout = layout

	c.methods = make(map[string]*Method, len(natives))
	for _, n := range natives {
		parsed, err := classfile.ParseMethodDescriptor(n.descriptor)
		if err != nil {
			panic(err) // bootstrap descriptors are compile-time constants
		}
		accessFlags := classfile.MethodPublic | classfile.MethodNative
		if n.static {
			accessFlags |= classfile.MethodStatic
		}
		raw := &classfile.Method{
			AccessFlags: accessFlags,
			Name:        n.name,
			Descriptor:  n.descriptor,
			Parsed:      parsed,
		}
		m := &Method{Owner: c, Raw: raw, Name: n.name, Descriptor: n.descriptor, Parsed: parsed}
		c.methods[m.signature()] = m
	}

	buildVTable(c)
	c.staticIndex = make(map[string]int)
	return c
}

// addStaticField declares a static field slot on a bootstrap class,
// mirroring what buildStaticStorage does for real class files. Only used
// for java/lang/System.out, so the zero value (Null) is always the right
// initial contents until Engine.initSystemOut fills it in.
func addStaticField(c *Class, name, descriptor string) {
	idx := len(c.staticValues)
	c.staticIndex[name+":"+descriptor] = idx
	c.staticValues = append(c.staticValues, zeroValueFor(descriptor))
}
