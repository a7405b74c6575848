package classfile

import "github.com/pkg/errors"

// rawAttribute is a still-undispatched (name, body) pair, before the
// caller (readFields/readMethods) decides whether it recognizes the name.
type rawAttribute struct {
	Name string
	Body []byte
}

func readAttributes(b *buffer, cp *ConstantPool) ([]rawAttribute, error) {
	count, err := b.u2()
	if err != nil {
		return nil, errors.Wrap(err, "reading attributes_count")
	}
	attrs := make([]rawAttribute, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIdx, err := b.u2()
		if err != nil {
			return nil, errors.Wrapf(err, "reading attribute %d name index", i)
		}
		name, err := cp.UTF8At(nameIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving attribute %d name", i)
		}
		length, err := b.u4()
		if err != nil {
			return nil, errors.Wrapf(err, "reading attribute %q length", name)
		}
		body, err := b.bytes(int(length))
		if err != nil {
			return nil, errors.Wrapf(err, "reading attribute %q body (%d bytes declared)", name, length)
		}
		attrs = append(attrs, rawAttribute{Name: name, Body: body})
	}
	return attrs, nil
}

func findAttribute(attrs []rawAttribute, name string) (*rawAttribute, bool) {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i], true
		}
	}
	return nil, false
}
