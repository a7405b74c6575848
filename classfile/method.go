package classfile

import "github.com/pkg/errors"

// MethodAccessFlags mirrors JVM spec §4.6 table 4.6-A.
type MethodAccessFlags uint16

const (
	MethodPublic       MethodAccessFlags = 0x0001
	MethodPrivate      MethodAccessFlags = 0x0002
	MethodProtected    MethodAccessFlags = 0x0004
	MethodStatic       MethodAccessFlags = 0x0008
	MethodFinal        MethodAccessFlags = 0x0010
	MethodSynchronized MethodAccessFlags = 0x0020
	MethodBridge       MethodAccessFlags = 0x0040
	MethodVarargs      MethodAccessFlags = 0x0080
	MethodNative       MethodAccessFlags = 0x0100
	MethodAbstract     MethodAccessFlags = 0x0400
	MethodStrict       MethodAccessFlags = 0x0800
)

func (f MethodAccessFlags) IsStatic() bool   { return f&MethodStatic != 0 }
func (f MethodAccessFlags) IsNative() bool   { return f&MethodNative != 0 }
func (f MethodAccessFlags) IsAbstract() bool { return f&MethodAbstract != 0 }

// ExceptionTableEntry is one row of a Code attribute's exception table,
// spec §4.1 / JVM spec §4.7.3.
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	// CatchType is a constant pool index of a Class constant, or 0 to mean
	// "catches everything" (used for compiled `finally` blocks).
	CatchType uint16
}

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// Code is the decoded body of a Code attribute.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytes          []byte
	ExceptionTable []ExceptionTableEntry
	LineNumbers    []LineNumberEntry // optional; nil if absent
}

// Method is a decoded method_info entry (spec §4.1).
type Method struct {
	AccessFlags MethodAccessFlags
	Name        string
	Descriptor  string
	Parsed      *MethodDescriptor

	// Code is nil for abstract and native methods.
	Code *Code
}

func readMethods(b *buffer, cp *ConstantPool) ([]Method, error) {
	count, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading methods_count")
	}
	methods := make([]Method, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := readOneMethod(b, cp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading method %d", i)
		}
		methods = append(methods, *m)
	}
	return methods, nil
}

func readOneMethod(b *buffer, cp *ConstantPool) (*Method, error) {
	accessFlags, err := b.u2()
	if err != nil {
		return nil, err
	}
	nameIdx, err := b.u2()
	if err != nil {
		return nil, err
	}
	name, err := cp.UTF8At(nameIdx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving method name")
	}
	descIdx, err := b.u2()
	if err != nil {
		return nil, err
	}
	descriptor, err := cp.UTF8At(descIdx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving method descriptor")
	}
	parsed, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing descriptor of %s", name)
	}

	attrs, err := readAttributes(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading method attributes")
	}

	method := &Method{
		AccessFlags: MethodAccessFlags(accessFlags),
		Name:        name,
		Descriptor:  descriptor,
		Parsed:      parsed,
	}

	if codeAttr, ok := findAttribute(attrs, "Code"); ok {
		code, err := readCode(codeAttr.Body, cp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading Code attribute of %s%s", name, descriptor)
		}
		method.Code = code
	} else if !method.AccessFlags.IsAbstract() && !method.AccessFlags.IsNative() {
		return nil, newErr(ErrInvalidAttribute, "method %s%s is neither abstract nor native but has no Code attribute", name, descriptor)
	}

	return method, nil
}

func readCode(body []byte, cp *ConstantPool) (*Code, error) {
	b := newBuffer(body)

	maxStack, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading max_stack")
	}
	maxLocals, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading max_locals")
	}
	codeLength, err := b.u4()
	if err != nil {
		return nil, errors.Wrap(err, "reading code_length")
	}
	if codeLength == 0 {
		return nil, newErr(ErrInvalidAttribute, "code_length must be > 0")
	}
	codeBytes, err := b.bytes(int(codeLength))
	if err != nil {
		return nil, errors.Wrap(err, "reading code bytes")
	}

	exceptionTableLength, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading exception_table_length")
	}
	exceptionTable := make([]ExceptionTableEntry, exceptionTableLength)
	for i := range exceptionTable {
		startPC, err := b.u2()
		if err != nil {
			return nil, err
		}
		endPC, err := b.u2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := b.u2()
		if err != nil {
			return nil, err
		}
		catchType, err := b.u2()
		if err != nil {
			return nil, err
		}
		exceptionTable[i] = ExceptionTableEntry{
			StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC, CatchType: catchType,
		}
	}

	attrs, err := readAttributes(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading Code's nested attributes")
	}

	code := &Code{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Bytes:          append([]byte(nil), codeBytes...),
		ExceptionTable: exceptionTable,
	}

	if lnAttr, ok := findAttribute(attrs, "LineNumberTable"); ok {
		lines, err := readLineNumberTable(lnAttr.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading LineNumberTable")
		}
		code.LineNumbers = lines
	}

	if b.hasMore() {
		return nil, newErr(ErrInvalidAttribute, "Code attribute has %d trailing bytes", b.remaining())
	}

	return code, nil
}

func readLineNumberTable(body []byte) ([]LineNumberEntry, error) {
	b := newBuffer(body)
	count, err := b.u2()
	if err != nil {
		return nil, err
	}
	entries := make([]LineNumberEntry, count)
	for i := range entries {
		startPC, err := b.u2()
		if err != nil {
			return nil, err
		}
		lineNumber, err := b.u2()
		if err != nil {
			return nil, err
		}
		entries[i] = LineNumberEntry{StartPC: startPC, LineNumber: lineNumber}
	}
	if b.hasMore() {
		return nil, newErr(ErrInvalidAttribute, "LineNumberTable has %d trailing bytes", b.remaining())
	}
	return entries, nil
}

// LineForPC returns the source line active at pc, or 0 if unknown.
func (c *Code) LineForPC(pc int) int {
	line := 0
	for _, e := range c.LineNumbers {
		if int(e.StartPC) <= pc {
			line = int(e.LineNumber)
		} else {
			break
		}
	}
	return line
}
