package classfile

import "github.com/pkg/errors"

// FieldAccessFlags mirrors JVM spec §4.5 table 4.5-A.
type FieldAccessFlags uint16

const (
	FieldPublic    FieldAccessFlags = 0x0001
	FieldPrivate   FieldAccessFlags = 0x0002
	FieldProtected FieldAccessFlags = 0x0004
	FieldStatic    FieldAccessFlags = 0x0008
	FieldFinal     FieldAccessFlags = 0x0010
	FieldVolatile  FieldAccessFlags = 0x0040
	FieldTransient FieldAccessFlags = 0x0080
)

func (f FieldAccessFlags) IsStatic() bool { return f&FieldStatic != 0 }

// Field is a decoded field_info entry, plus its resolved ConstantValue
// attribute (if any) — spec §4.1.
type Field struct {
	AccessFlags FieldAccessFlags
	Name        string
	Descriptor  string

	// HasConstantValue is set when a static final field carries a
	// ConstantValue attribute; ConstantValueIndex is that attribute's
	// constant pool index, left symbolic (the reader never dereferences it).
	HasConstantValue    bool
	ConstantValueIndex  uint16
}

func readFields(b *buffer, cp *ConstantPool) ([]Field, error) {
	count, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading fields_count")
	}
	fields := make([]Field, 0, count)
	for i := uint16(0); i < count; i++ {
		f, err := readOneField(b, cp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading field %d", i)
		}
		fields = append(fields, *f)
	}
	return fields, nil
}

func readOneField(b *buffer, cp *ConstantPool) (*Field, error) {
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
		return nil, errors.Wrap(err, "resolving field name")
	}
	descIdx, err := b.u2()
	if err != nil {
		return nil, err
	}
	descriptor, err := cp.UTF8At(descIdx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving field descriptor")
	}
	if err := ValidateFieldDescriptor(descriptor); err != nil {
		return nil, err
	}

	attrs, err := readAttributes(b, cp)
	if err != nil {
		return nil, errors.Wrap(err, "reading field attributes")
	}

	field := &Field{
		AccessFlags: FieldAccessFlags(accessFlags),
		Name:        name,
		Descriptor:  descriptor,
	}
	if cvAttr, ok := findAttribute(attrs, "ConstantValue"); ok {
		cvBuf := newBuffer(cvAttr.Body)
		idx, err := cvBuf.u2()
		if err != nil {
			return nil, errors.Wrap(err, "reading ConstantValue index")
		}
		if cvBuf.hasMore() {
			return nil, newErr(ErrInvalidAttribute, "ConstantValue attribute has trailing bytes")
		}
		field.HasConstantValue = true
		field.ConstantValueIndex = idx
	}

	return field, nil
}
