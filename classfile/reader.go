// Package classfile decodes the JVM class file format (spec §4.1) into an
// in-memory description. The decoder is pure: it never dereferences a
// constant pool index against another class, and it never executes
// anything. Symbolic resolution is the job of package cvm.
package classfile

import (
	"os"

	"github.com/pkg/errors"
)

const (
	magic              = 0xCAFEBABE
	maxSupportedMajor  = 51 // Java SE 7
	minSupportedMajor  = 45 // Java SE 1.0.2 / 1.1
)

// ClassAccessFlags mirrors JVM spec §4.1 table 4.1-A.
type ClassAccessFlags uint16

const (
	ClassPublic     ClassAccessFlags = 0x0001
	ClassFinal      ClassAccessFlags = 0x0010
	ClassSuper      ClassAccessFlags = 0x0020
	ClassInterface  ClassAccessFlags = 0x0200
	ClassAbstract   ClassAccessFlags = 0x0400
	ClassSynthetic  ClassAccessFlags = 0x1000
	ClassAnnotation ClassAccessFlags = 0x2000
	ClassEnum       ClassAccessFlags = 0x4000
)

func (f ClassAccessFlags) IsInterface() bool { return f&ClassInterface != 0 }

// ClassFile is the fully decoded, immutable description of one class file,
// per the data model in spec §3.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16

	ConstantPool *ConstantPool

	AccessFlags ClassAccessFlags
	ThisClass   string
	// SuperClass is "" only for java/lang/Object.
	SuperClass string
	Interfaces []string

	Fields  []Field
	Methods []Method

	// SourceFile, if present, names the .java file the compiler read;
	// used only for diagnostics/stack traces.
	SourceFile string
}

// FindMethod looks up a method by (name, descriptor); nil if absent.
func (c *ClassFile) FindMethod(name, descriptor string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == descriptor {
			return &c.Methods[i]
		}
	}
	return nil
}

// FindField looks up a field by (name, descriptor); nil if absent.
func (c *ClassFile) FindField(name, descriptor string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name && c.Fields[i].Descriptor == descriptor {
			return &c.Fields[i]
		}
	}
	return nil
}

// ParseFile reads and decodes the class file at path.
func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading class file %s", path)
	}
	return Parse(data)
}

// Parse decodes a class file's raw bytes. On any failure it returns a
// *Error (see errors.go) and no partial ClassFile, per spec §4.1.
func Parse(data []byte) (*ClassFile, error) {
	b := newBuffer(data)

	magicWord, err := b.u4()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic number")
	}
	if magicWord != magic {
		return nil, newErr(ErrBadMagic, "expected 0xCAFEBABE, got 0x%08X", magicWord)
	}

	minor, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading minor_version")
	}
	major, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading major_version")
	}
	if major < minSupportedMajor || major > maxSupportedMajor {
		return nil, newErr(ErrUnsupportedVersion, "major version %d.%d (supported: %d-%d)", major, minor, minSupportedMajor, maxSupportedMajor)
	}

	cp, err := readConstantPool(b)
	if err != nil {
		return nil, errors.Wrap(err, "reading constant pool")
	}

	accessFlags, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading access_flags")
	}

	thisClassIdx, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading this_class")
	}
	thisClass, err := cp.ClassNameAt(thisClassIdx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving this_class")
	}

	superClassIdx, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading super_class")
	}
	var superClass string
	if superClassIdx != 0 {
		superClass, err = cp.ClassNameAt(superClassIdx)
		if err != nil {
			return nil, errors.Wrap(err, "resolving super_class")
		}
	}

	interfaces, err := readInterfaces(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading interfaces")
	}

	fields, err := readFields(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading fields")
	}

	methods, err := readMethods(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading methods")
	}

	classAttrs, err := readAttributes(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading class attributes")
	}

	if b.hasMore() {
		return nil, newErr(ErrInvalidAttribute, "%d trailing bytes after class file body", b.remaining())
	}

	cf := &ClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		ConstantPool: cp,
		AccessFlags:  ClassAccessFlags(accessFlags),
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
	}

	if sfAttr, ok := findAttribute(classAttrs, "SourceFile"); ok {
		sfBuf := newBuffer(sfAttr.Body)
		idx, err := sfBuf.u2()
		if err != nil {
			return nil, errors.Wrap(err, "reading SourceFile index")
		}
		name, err := cp.UTF8At(idx)
		if err != nil {
			return nil, errors.Wrap(err, "resolving SourceFile name")
		}
		cf.SourceFile = name
	}

	return cf, nil
}

func readInterfaces(b *buffer, cp *ConstantPool) ([]string, error) {
	count, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading interfaces_count")
	}
	interfaces := make([]string, count)
	for i := uint16(0); i < count; i++ {
		idx, err := b.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassNameAt(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving interface %d", i)
		}
		interfaces[i] = name
	}
	return interfaces, nil
}
