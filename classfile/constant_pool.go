package classfile

import "github.com/pkg/errors"

// Constant pool tags, per JVM spec §4.4.
const (
	tagUTF8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldRef           = 9
	tagMethodRef          = 10
	tagInterfaceMethodRef = 11
	tagNameAndType        = 12
)

// ConstantKind identifies the runtime shape of a constant pool entry.
type ConstantKind int

const (
	ConstUTF8 ConstantKind = iota
	ConstInteger
	ConstFloat
	ConstLong
	ConstDouble
	ConstClass
	ConstString
	ConstFieldRef
	ConstMethodRef
	ConstInterfaceMethodRef
	ConstNameAndType
	// constSlotUnusable marks the padding slot that follows a Long/Double
	// entry; JVM spec §4.4.5 says that slot is never addressed.
	constSlotUnusable
)

// Constant is a single decoded constant pool entry.
type Constant struct {
	Kind ConstantKind

	UTF8       string
	Integer    int32
	Float      float32
	Long       int64
	Double     float64
	NameIndex  uint16 // Class, String
	StringUTF8 uint16 // NameAndType.name
	ClassIndex uint16
	NameAndTypeIndex uint16
	DescriptorIndex  uint16
}

// ConstantPool is 1-based, matching the JVM spec's constant_pool_count
// convention: valid indices are 1..len(entries), and entries[0] is unused.
type ConstantPool struct {
	entries []Constant
}

func (cp *ConstantPool) Len() int {
	// count-1 non-empty entries were declared; slot 0 is the phantom entry.
	return len(cp.entries) - 1
}

func (cp *ConstantPool) get(index uint16) (*Constant, error) {
	if int(index) <= 0 || int(index) >= len(cp.entries) {
		return nil, newErr(ErrConstantPoolIndex, "index %d out of range [1, %d)", index, len(cp.entries))
	}
	c := &cp.entries[index]
	if c.Kind == constSlotUnusable {
		return nil, newErr(ErrConstantPoolIndex, "index %d refers to the unusable slot after a long/double", index)
	}
	return c, nil
}

// UTF8At returns the string held at index, which must be a UTF8 constant.
func (cp *ConstantPool) UTF8At(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.Kind != ConstUTF8 {
		return "", newErr(ErrConstantPoolIndex, "index %d is not a UTF8 constant", index)
	}
	return c.UTF8, nil
}

// ClassNameAt resolves a Class constant at index to its internal name
// (e.g. "java/lang/Object"), following its NameIndex into the UTF8 table.
func (cp *ConstantPool) ClassNameAt(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.Kind != ConstClass {
		return "", newErr(ErrConstantPoolIndex, "index %d is not a Class constant", index)
	}
	return cp.UTF8At(c.NameIndex)
}

// NameAndTypeAt resolves a NameAndType constant to (name, descriptor).
func (cp *ConstantPool) NameAndTypeAt(index uint16) (name string, descriptor string, err error) {
	c, err := cp.get(index)
	if err != nil {
		return "", "", err
	}
	if c.Kind != ConstNameAndType {
		return "", "", newErr(ErrConstantPoolIndex, "index %d is not a NameAndType constant", index)
	}
	name, err = cp.UTF8At(c.StringUTF8)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.UTF8At(c.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef is the fully symbolic form of a field/method/interface-method
// reference: the owner's internal class name plus (name, descriptor).
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

// MemberRefAt resolves a FieldRef/MethodRef/InterfaceMethodRef constant.
func (cp *ConstantPool) MemberRefAt(index uint16) (*MemberRef, error) {
	c, err := cp.get(index)
	if err != nil {
		return nil, err
	}
	if c.Kind != ConstFieldRef && c.Kind != ConstMethodRef && c.Kind != ConstInterfaceMethodRef {
		return nil, newErr(ErrConstantPoolIndex, "index %d is not a member reference", index)
	}
	className, err := cp.ClassNameAt(c.ClassIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving owner of member ref at %d", index)
	}
	name, descriptor, err := cp.NameAndTypeAt(c.NameAndTypeIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving name/type of member ref at %d", index)
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// Get returns the raw constant at index, for consumers (like ldc) that
// need to branch on kind themselves.
func (cp *ConstantPool) Get(index uint16) (*Constant, error) {
	return cp.get(index)
}

func readConstantPool(b *buffer) (*ConstantPool, error) {
	count, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading constant_pool_count")
	}

	entries := make([]Constant, count) // entries[0] unused; long/double consume 2 slots
	i := uint16(1)
	for i < count {
		tag, err := b.u1()
		if err != nil {
			return nil, errors.Wrapf(err, "reading tag of constant pool entry %d", i)
		}
		switch tag {
		case tagUTF8:
			length, err := b.u2()
			if err != nil {
				return nil, err
			}
			raw, err := b.bytes(int(length))
			if err != nil {
				return nil, errors.Wrapf(err, "reading UTF8 constant %d", i)
			}
			entries[i] = Constant{Kind: ConstUTF8, UTF8: string(raw)}
			i++
		case tagInteger:
			v, err := b.u4()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstInteger, Integer: int32(v)}
			i++
		case tagFloat:
			v, err := b.u4()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstFloat, Float: float32FromBits(v)}
			i++
		case tagLong:
			v, err := b.u8()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstLong, Long: int64(v)}
			if i+1 < count {
				entries[i+1] = Constant{Kind: constSlotUnusable}
			}
			i += 2
		case tagDouble:
			v, err := b.u8()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstDouble, Double: float64FromBits(v)}
			if i+1 < count {
				entries[i+1] = Constant{Kind: constSlotUnusable}
			}
			i += 2
		case tagClass:
			idx, err := b.u2()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstClass, NameIndex: idx}
			i++
		case tagString:
			idx, err := b.u2()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstString, NameIndex: idx}
			i++
		case tagFieldRef, tagMethodRef, tagInterfaceMethodRef:
			classIdx, err := b.u2()
			if err != nil {
				return nil, err
			}
			ntIdx, err := b.u2()
			if err != nil {
				return nil, err
			}
			kind := ConstFieldRef
			if tag == tagMethodRef {
				kind = ConstMethodRef
			} else if tag == tagInterfaceMethodRef {
				kind = ConstInterfaceMethodRef
			}
			entries[i] = Constant{Kind: kind, ClassIndex: classIdx, NameAndTypeIndex: ntIdx}
			i++
		case tagNameAndType:
			nameIdx, err := b.u2()
			if err != nil {
				return nil, err
			}
			descIdx, err := b.u2()
			if err != nil {
				return nil, err
			}
			entries[i] = Constant{Kind: ConstNameAndType, StringUTF8: nameIdx, DescriptorIndex: descIdx}
			i++
		default:
			return nil, newErr(ErrUnknownConstantTag, "tag %d at entry %d", tag, i)
		}
	}

	return &ConstantPool{entries: entries}, nil
}
