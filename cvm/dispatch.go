package cvm

import "github.com/andreabergia/rjvm/classfile"

// findMethodInHierarchy searches class and its ancestors, in that order,
// for a method declared exactly there — spec §4.4's exact-owner lookup
// used by invokestatic/invokespecial, as distinct from invokevirtual's
// vtable-slot lookup.
func findMethodInHierarchy(class *Class, name, descriptor string) (*Method, bool) {
	for c := class; c != nil; c = c.Super {
		if m, ok := c.DeclaredMethod(name, descriptor); ok {
			return m, true
		}
	}
	return nil, false
}

// resolveMemberRefOwner resolves, links and initializes (through Resolve)
// the class named by a MethodRef/FieldRef.
func (e *Engine) resolveMemberRefOwner(ref *classfile.MemberRef) (*Class, error) {
	return e.Resolve(ref.ClassName)
}

// resolveInvokeStatic implements spec §4.4's invokestatic: exact-owner
// lookup, must be static, triggers the owner's initialization (resolving
// through Resolve rather than Link).
func (e *Engine) resolveInvokeStatic(ref *classfile.MemberRef) (*Method, error) {
	owner, err := e.resolveMemberRefOwner(ref)
	if err != nil {
		return nil, err
	}
	m, ok := findMethodInHierarchy(owner, ref.Name, ref.Descriptor)
	if !ok || !m.IsStatic() {
		return nil, newVMError(NoSuchMethodError, "%s.%s%s", ref.ClassName, ref.Name, ref.Descriptor)
	}
	return m, nil
}

// resolveInvokeSpecial implements invokespecial: exact-owner lookup for
// <init>, private methods, and super calls. It never consults the
// receiver's vtable, which is exactly what distinguishes it from
// invokevirtual for overridden methods.
func (e *Engine) resolveInvokeSpecial(ref *classfile.MemberRef) (*Method, error) {
	owner, err := e.resolveMemberRefOwner(ref)
	if err != nil {
		return nil, err
	}
	m, ok := findMethodInHierarchy(owner, ref.Name, ref.Descriptor)
	if !ok || m.IsStatic() {
		return nil, newVMError(NoSuchMethodError, "%s.%s%s", ref.ClassName, ref.Name, ref.Descriptor)
	}
	return m, nil
}

// resolveInvokeVirtual implements invokevirtual/invokeinterface: the
// receiver's own runtime class vtable is searched by signature, which
// naturally yields whatever override is closest to the receiver's actual
// class (spec §4.4's "vtable lookup on runtime class").
func resolveInvokeVirtual(receiverClass *Class, ref *classfile.MemberRef) (*Method, error) {
	m, ok := receiverClass.VirtualMethod(ref.Name, ref.Descriptor)
	if !ok || m.IsAbstract() {
		return nil, newVMError(NoSuchMethodError, "%s.%s%s", receiverClass.Name, ref.Name, ref.Descriptor)
	}
	return m, nil
}
