package cvm

import "github.com/andreabergia/rjvm/classfile"

func (e *Engine) classPoolOf(frame *Frame) *classfile.ConstantPool {
	return frame.Class.ConstantPool()
}

// execLdc implements ldc/ldc_w: push an int, float, resolved String, or
// resolved Class literal from the constant pool.
func (e *Engine) execLdc(frame *Frame, index uint16) error {
	c, err := e.classPoolOf(frame).Get(index)
	if err != nil {
		return abortf("ldc: %v", err)
	}
	switch c.Kind {
	case classfile.ConstInteger:
		frame.Push(Int(c.Integer))
	case classfile.ConstFloat:
		frame.Push(Float(c.Float))
	case classfile.ConstString:
		s, err := e.classPoolOf(frame).UTF8At(c.NameIndex)
		if err != nil {
			return abortf("ldc string: %v", err)
		}
		obj, err := e.internString(s)
		if err != nil {
			return err
		}
		frame.Push(Reference{Ptr: obj})
	case classfile.ConstClass:
		name, err := e.classPoolOf(frame).ClassNameAt(index)
		if err != nil {
			return abortf("ldc class: %v", err)
		}
		class, err := e.Link(name)
		if err != nil {
			return err
		}
		obj, err := e.classObjectFor(class)
		if err != nil {
			return err
		}
		frame.Push(Reference{Ptr: obj})
	default:
		return abortf("ldc: unsupported constant kind at index %d", index)
	}
	return nil
}

// execLdc2 implements ldc2_w: long and double constants only.
func (e *Engine) execLdc2(frame *Frame, index uint16) error {
	c, err := e.classPoolOf(frame).Get(index)
	if err != nil {
		return abortf("ldc2_w: %v", err)
	}
	switch c.Kind {
	case classfile.ConstLong:
		frame.Push(Long(c.Long))
	case classfile.ConstDouble:
		frame.Push(Double(c.Double))
	default:
		return abortf("ldc2_w: index %d is not long/double", index)
	}
	return nil
}

// classObjectFor returns the (cached) java/lang/Class instance mirroring
// class, materialized lazily since not every class is ever named in a
// ldc/Class.forName/getClass call.
func (e *Engine) classObjectFor(class *Class) (*HeapObject, error) {
	if e.classObjects == nil {
		e.classObjects = make(map[*Class]*HeapObject)
	}
	if obj, ok := e.classObjects[class]; ok {
		return obj, nil
	}
	classClass, err := e.Resolve("java/lang/Class")
	if err != nil {
		return nil, err
	}
	obj, err := e.Allocate(e, classClass)
	if err != nil {
		return nil, err
	}
	nameStr, err := e.internString(class.Name)
	if err != nil {
		return nil, err
	}
	if idx, ok := classClass.FieldOffset("name", "Ljava/lang/String;"); ok {
		obj.fields[idx] = Reference{Ptr: nameStr}
	}
	obj.mirrors = class // remember the mirrored runtime class for forName/newInstance
	e.classObjects[class] = obj
	return obj, nil
}

func (e *Engine) execArrayLoad(frame *Frame) error {
	index := int32(frame.Pop().(Int))
	ref := frame.Pop().(Reference)
	if ref.IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "array load"))
	}
	if index < 0 || int(index) >= ref.Ptr.ArrayLength() {
		return e.raiseVMError(newVMError(ArrayIndexOutOfBounds, "index %d, length %d", index, ref.Ptr.ArrayLength()))
	}
	frame.Push(ref.Ptr.slots[index])
	return nil
}

func (e *Engine) execArrayStore(frame *Frame) error {
	value := frame.Pop()
	index := int32(frame.Pop().(Int))
	ref := frame.Pop().(Reference)
	if ref.IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "array store"))
	}
	if index < 0 || int(index) >= ref.Ptr.ArrayLength() {
		return e.raiseVMError(newVMError(ArrayIndexOutOfBounds, "index %d, length %d", index, ref.Ptr.ArrayLength()))
	}
	ref.Ptr.slots[index] = narrowForArrayStore(ref.Ptr.header.arrayElement, value)
	return nil
}

func narrowForArrayStore(descriptor string, v Value) Value {
	i, ok := v.(Int)
	if !ok {
		return v
	}
	switch descriptor {
	case "B":
		return Int(int8(i))
	case "C":
		return Int(uint16(i))
	case "S":
		return Int(int16(i))
	case "Z":
		return i & 1
	default:
		return v
	}
}

func findStaticOwner(class *Class, name, descriptor string) (*Class, int, bool) {
	for c := class; c != nil; c = c.Super {
		if idx, ok := c.StaticField(name, descriptor); ok {
			return c, idx, true
		}
	}
	return nil, 0, false
}

func (e *Engine) execGetstatic(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("getstatic: %v", err)
	}
	owner, err := e.Resolve(ref.ClassName)
	if err != nil {
		return err
	}
	decl, idx, ok := findStaticOwner(owner, ref.Name, ref.Descriptor)
	if !ok {
		return e.raiseVMError(newVMError(NoSuchFieldError, "%s.%s", ref.ClassName, ref.Name))
	}
	frame.Push(decl.StaticValue(idx))
	return nil
}

func (e *Engine) execPutstatic(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("putstatic: %v", err)
	}
	owner, err := e.Resolve(ref.ClassName)
	if err != nil {
		return err
	}
	decl, idx, ok := findStaticOwner(owner, ref.Name, ref.Descriptor)
	if !ok {
		return e.raiseVMError(newVMError(NoSuchFieldError, "%s.%s", ref.ClassName, ref.Name))
	}
	decl.SetStaticValue(idx, frame.Pop())
	return nil
}

func (e *Engine) execGetfield(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("getfield: %v", err)
	}
	obj := frame.Pop().(Reference)
	if obj.IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "%s.%s", ref.ClassName, ref.Name))
	}
	idx, ok := obj.Ptr.Class().FieldOffset(ref.Name, ref.Descriptor)
	if !ok {
		return e.raiseVMError(newVMError(NoSuchFieldError, "%s.%s", ref.ClassName, ref.Name))
	}
	frame.Push(obj.Ptr.fields[idx])
	return nil
}

func (e *Engine) execPutfield(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("putfield: %v", err)
	}
	value := frame.Pop()
	obj := frame.Pop().(Reference)
	if obj.IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "%s.%s", ref.ClassName, ref.Name))
	}
	idx, ok := obj.Ptr.Class().FieldOffset(ref.Name, ref.Descriptor)
	if !ok {
		return e.raiseVMError(newVMError(NoSuchFieldError, "%s.%s", ref.ClassName, ref.Name))
	}
	obj.Ptr.fields[idx] = value
	return nil
}

func (e *Engine) execInvokeStatic(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("invokestatic: %v", err)
	}
	method, err := e.resolveInvokeStatic(ref)
	if err != nil {
		return err
	}
	args := popArgs(frame, method.Parsed, true)
	result, err := e.invoke(method, args)
	if err != nil {
		return err
	}
	if method.Parsed.ReturnType != "V" {
		frame.Push(result)
	}
	return nil
}

func (e *Engine) execInvokeSpecial(frame *Frame) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("invokespecial: %v", err)
	}
	method, err := e.resolveInvokeSpecial(ref)
	if err != nil {
		return err
	}
	desc, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return abortf("invokespecial descriptor: %v", err)
	}
	args := popArgs(frame, desc, false)
	if args[0].(Reference).IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "%s.%s", ref.ClassName, ref.Name))
	}
	result, err := e.invoke(method, args)
	if err != nil {
		return err
	}
	if method.Parsed.ReturnType != "V" {
		frame.Push(result)
	}
	return nil
}

func (e *Engine) execInvokeVirtual(frame *Frame, _ bool) error {
	ref, err := e.classPoolOf(frame).MemberRefAt(frame.readU2())
	if err != nil {
		return abortf("invokevirtual: %v", err)
	}
	return e.dispatchVirtual(frame, ref)
}

func (e *Engine) execInvokeInterface(frame *Frame) error {
	idx := frame.readU2()
	frame.readU1() // count, redundant with descriptor
	frame.readU1() // reserved, always 0
	ref, err := e.classPoolOf(frame).MemberRefAt(idx)
	if err != nil {
		return abortf("invokeinterface: %v", err)
	}
	return e.dispatchVirtual(frame, ref)
}

func (e *Engine) dispatchVirtual(frame *Frame, ref *classfile.MemberRef) error {
	desc, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return abortf("invoke descriptor: %v", err)
	}
	args := popArgs(frame, desc, false)
	receiver := args[0].(Reference)
	if receiver.IsNull() {
		return e.raiseVMError(newVMError(NullPointerException, "%s.%s", ref.ClassName, ref.Name))
	}
	method, err := resolveInvokeVirtual(receiver.Ptr.Class(), ref)
	if err != nil {
		return err
	}
	result, err := e.invoke(method, args)
	if err != nil {
		return err
	}
	if method.Parsed.ReturnType != "V" {
		frame.Push(result)
	}
	return nil
}

func (e *Engine) execNew(frame *Frame) error {
	name, err := e.classPoolOf(frame).ClassNameAt(frame.readU2())
	if err != nil {
		return abortf("new: %v", err)
	}
	class, err := e.Resolve(name)
	if err != nil {
		return err
	}
	if class.IsInterface() || class.AccessFlags&classfile.ClassAbstract != 0 {
		return e.raiseVMError(newVMError(InstantiationError, "%s", name))
	}
	obj, err := e.Allocate(e, class)
	if err != nil {
		return err
	}
	frame.Push(Reference{Ptr: obj})
	return nil
}

func (e *Engine) execNewarray(frame *Frame) error {
	atype := frame.readU1()
	length := int32(frame.Pop().(Int))
	desc, err := newarrayElementDescriptor(atype)
	if err != nil {
		return err
	}
	arr, err := e.AllocateArray(e, desc, int(length))
	if err != nil {
		return err
	}
	frame.Push(Reference{Ptr: arr})
	return nil
}

func (e *Engine) execAnewarray(frame *Frame) error {
	name, err := e.classPoolOf(frame).ClassNameAt(frame.readU2())
	if err != nil {
		return abortf("anewarray: %v", err)
	}
	length := int32(frame.Pop().(Int))
	descriptor := name
	if name[0] != '[' {
		descriptor = "L" + name + ";"
	}
	arr, err := e.AllocateArray(e, descriptor, int(length))
	if err != nil {
		return err
	}
	frame.Push(Reference{Ptr: arr})
	return nil
}

// isInstanceOfName implements spec §4.2's Open Question resolution: arrays
// have no synthetic Class object, so their assignability is a dedicated
// rule rather than a walk of a runtime class hierarchy.
func (e *Engine) isInstanceOfName(obj *HeapObject, targetName string) (bool, error) {
	if obj.IsArray() {
		return e.arrayAssignable(obj.ArrayElementKind(), targetName)
	}
	target, err := e.Link(targetName)
	if err != nil {
		return false, err
	}
	return obj.Class().IsAssignableTo(target), nil
}

// arrayAssignable implements array widening reference conversion (JVM spec
// §4.10.1.3): every array is-a java/lang/Object, java/lang/Cloneable and
// java/io/Serializable, and one reference-element array type is assignable
// to another whenever their element types are (covariant array typing) —
// e.g. String[] instanceof Object[].
func (e *Engine) arrayAssignable(elementDescriptor, targetName string) (bool, error) {
	switch targetName {
	case "java/lang/Object", "java/lang/Cloneable", "java/io/Serializable":
		return true, nil
	}
	if len(targetName) == 0 || targetName[0] != '[' {
		return false, nil
	}
	targetElement := targetName[1:]
	if targetElement == elementDescriptor {
		return true, nil
	}
	if len(elementDescriptor) < 2 || elementDescriptor[0] != 'L' ||
		len(targetElement) < 2 || targetElement[0] != 'L' {
		return false, nil
	}
	fromClass, err := e.Link(elementDescriptor[1 : len(elementDescriptor)-1])
	if err != nil {
		return false, err
	}
	toClass, err := e.Link(targetElement[1 : len(targetElement)-1])
	if err != nil {
		return false, err
	}
	return fromClass.IsAssignableTo(toClass), nil
}

func (e *Engine) execCheckcast(frame *Frame) error {
	name, err := e.classPoolOf(frame).ClassNameAt(frame.readU2())
	if err != nil {
		return abortf("checkcast: %v", err)
	}
	ref := frame.Peek().(Reference)
	if ref.IsNull() {
		return nil
	}
	ok, err := e.isInstanceOfName(ref.Ptr, name)
	if err != nil {
		return err
	}
	if !ok {
		return e.raiseVMError(newVMError(ClassCastException, "%s cannot be cast to %s", classNameOf(ref.Ptr), name))
	}
	return nil
}

func (e *Engine) execInstanceof(frame *Frame) error {
	name, err := e.classPoolOf(frame).ClassNameAt(frame.readU2())
	if err != nil {
		return abortf("instanceof: %v", err)
	}
	ref := frame.Pop().(Reference)
	if ref.IsNull() {
		frame.Push(Int(0))
		return nil
	}
	ok, err := e.isInstanceOfName(ref.Ptr, name)
	if err != nil {
		return err
	}
	frame.Push(Boolean(ok))
	return nil
}

func classNameOf(obj *HeapObject) string {
	if obj.IsArray() {
		return obj.ArrayElementKind() + "[]"
	}
	if obj.Class() != nil {
		return obj.Class().Name
	}
	return "?"
}

func (e *Engine) execWide(frame *Frame) error {
	sub := frame.readU1()
	switch sub {
	case opIinc:
		index := int(frame.readU2())
		delta := int32(frame.readI2())
		frame.SetLocal(index, frame.Local(index).(Int)+Int(delta))
	case opIload, opFload, opAload, opLload, opDload:
		frame.Push(frame.Local(int(frame.readU2())))
	case opIstore, opFstore, opAstore, opLstore, opDstore:
		frame.SetLocal(int(frame.readU2()), frame.Pop())
	default:
		return abortf("wide: unsupported sub-opcode 0x%02x", sub)
	}
	return nil
}
