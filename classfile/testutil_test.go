package classfile

import "encoding/binary"

// classBuilder assembles raw class file bytes by hand, standing in for a
// real javac in tests (grounded on the same approach the corpus's
// classfile/bytecode tests use — see daimatz-gojvm's instructions_test.go).
type classBuilder struct {
	buf     []byte
	utf8    map[string]uint16
	pool    [][]byte // constant pool entries, in order, 1-based
}

func newClassBuilder() *classBuilder {
	return &classBuilder{utf8: make(map[string]uint16)}
}

func (c *classBuilder) addUTF8(s string) uint16 {
	if idx, ok := c.utf8[s]; ok {
		return idx
	}
	entry := append([]byte{tagUTF8}, be16(uint16(len(s)))...)
	entry = append(entry, []byte(s)...)
	c.pool = append(c.pool, entry)
	idx := uint16(len(c.pool))
	c.utf8[s] = idx
	return idx
}

func (c *classBuilder) addClass(name string) uint16 {
	nameIdx := c.addUTF8(name)
	entry := append([]byte{tagClass}, be16(nameIdx)...)
	c.pool = append(c.pool, entry)
	return uint16(len(c.pool))
}

func (c *classBuilder) addNameAndType(name, descriptor string) uint16 {
	nameIdx := c.addUTF8(name)
	descIdx := c.addUTF8(descriptor)
	entry := append([]byte{tagNameAndType}, be16(nameIdx)...)
	entry = append(entry, be16(descIdx)...)
	c.pool = append(c.pool, entry)
	return uint16(len(c.pool))
}

func (c *classBuilder) addMethodRef(className, name, descriptor string) uint16 {
	classIdx := c.addClass(className)
	ntIdx := c.addNameAndType(name, descriptor)
	entry := append([]byte{tagMethodRef}, be16(classIdx)...)
	entry = append(entry, be16(ntIdx)...)
	c.pool = append(c.pool, entry)
	return uint16(len(c.pool))
}

func (c *classBuilder) addInteger(v int32) uint16 {
	entry := append([]byte{tagInteger}, be32(uint32(v))...)
	c.pool = append(c.pool, entry)
	return uint16(len(c.pool))
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// methodSpec describes one method body for build().
type methodSpec struct {
	accessFlags uint16
	name        string
	descriptor  string
	maxStack    uint16
	maxLocals   uint16
	code        []byte
}

// build assembles a minimal, well-formed class file: no fields, the given
// methods, extending superClass (java/lang/Object if "").
func (c *classBuilder) build(thisClass, superClass string, methods []methodSpec) []byte {
	thisClassIdx := c.addClass(thisClass)
	if superClass == "" {
		superClass = "java/lang/Object"
	}
	superClassIdx := c.addClass(superClass)

	codeAttrNameIdx := c.addUTF8("Code")

	var methodBytes []byte
	methodBytes = append(methodBytes, be16(uint16(len(methods)))...)
	for _, m := range methods {
		nameIdx := c.addUTF8(m.name)
		descIdx := c.addUTF8(m.descriptor)
		methodBytes = append(methodBytes, be16(m.accessFlags)...)
		methodBytes = append(methodBytes, be16(nameIdx)...)
		methodBytes = append(methodBytes, be16(descIdx)...)

		methodBytes = append(methodBytes, be16(1)...) // attributes_count = 1 (Code)
		methodBytes = append(methodBytes, be16(codeAttrNameIdx)...)

		var codeAttr []byte
		codeAttr = append(codeAttr, be16(m.maxStack)...)
		codeAttr = append(codeAttr, be16(m.maxLocals)...)
		codeAttr = append(codeAttr, be32(uint32(len(m.code)))...)
		codeAttr = append(codeAttr, m.code...)
		codeAttr = append(codeAttr, be16(0)...) // exception_table_length
		codeAttr = append(codeAttr, be16(0)...) // attributes_count

		methodBytes = append(methodBytes, be32(uint32(len(codeAttr)))...)
		methodBytes = append(methodBytes, codeAttr...)
	}

	var out []byte
	out = append(out, be32(magic)...)
	out = append(out, be16(0)...)  // minor
	out = append(out, be16(51)...) // major = Java 7

	out = append(out, be16(uint16(len(c.pool)+1))...) // constant_pool_count
	for _, entry := range c.pool {
		out = append(out, entry...)
	}

	out = append(out, be16(uint16(ClassPublic|ClassSuper))...)
	out = append(out, be16(thisClassIdx)...)
	out = append(out, be16(superClassIdx)...)
	out = append(out, be16(0)...) // interfaces_count
	out = append(out, be16(0)...) // fields_count
	out = append(out, methodBytes...)
	out = append(out, be16(0)...) // class attributes_count

	return out
}
