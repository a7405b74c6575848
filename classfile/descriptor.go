package classfile

import "strings"

// ValidateFieldDescriptor checks that a field descriptor string follows the
// JVM spec grammar: BaseType | ObjectType | ArrayType. It does not resolve
// the referenced class; the reader is pure (spec §4.1).
func ValidateFieldDescriptor(descriptor string) error {
	_, rest, err := parseFieldType(descriptor)
	if err != nil {
		return err
	}
	if rest != "" {
		return newErr(ErrInvalidDescriptor, "trailing data in field descriptor %q", descriptor)
	}
	return nil
}

// parseFieldType consumes exactly one FieldDescriptor from the front of s
// and returns it along with what remains.
func parseFieldType(s string) (fieldType string, rest string, err error) {
	if s == "" {
		return "", "", newErr(ErrInvalidDescriptor, "empty field descriptor")
	}
	switch s[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return s[:1], s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", "", newErr(ErrInvalidDescriptor, "unterminated class type in %q", s)
		}
		return s[:end+1], s[end+1:], nil
	case '[':
		inner, rest, err := parseFieldType(s[1:])
		if err != nil {
			return "", "", err
		}
		return "[" + inner, rest, nil
	default:
		return "", "", newErr(ErrInvalidDescriptor, "unrecognized type char %q in %q", s[0], s)
	}
}

// MethodDescriptor is the decoded (parameter types, return type) shape of a
// method descriptor string like "(ILjava/lang/String;)V".
type MethodDescriptor struct {
	Raw            string
	ParameterTypes []string
	ReturnType     string // "V" for void, else a field descriptor
}

// ParseMethodDescriptor validates and decodes a method descriptor.
func ParseMethodDescriptor(descriptor string) (*MethodDescriptor, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return nil, newErr(ErrInvalidDescriptor, "method descriptor %q must start with '('", descriptor)
	}
	rest := descriptor[1:]
	var params []string
	for len(rest) > 0 && rest[0] != ')' {
		var t string
		var err error
		t, rest, err = parseFieldType(rest)
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	if len(rest) == 0 {
		return nil, newErr(ErrInvalidDescriptor, "method descriptor %q missing ')'", descriptor)
	}
	rest = rest[1:] // consume ')'

	var returnType string
	if rest == "V" {
		returnType = "V"
	} else {
		var err error
		returnType, rest, err = parseFieldType(rest)
		if err != nil {
			return nil, err
		}
		if rest != "" {
			return nil, newErr(ErrInvalidDescriptor, "trailing data in method descriptor %q", descriptor)
		}
	}

	return &MethodDescriptor{Raw: descriptor, ParameterTypes: params, ReturnType: returnType}, nil
}

// IsWide reports whether a field descriptor occupies two local/stack slots
// (long or double), per spec §3.
func IsWide(fieldDescriptor string) bool {
	return fieldDescriptor == "J" || fieldDescriptor == "D"
}

// ArgumentSlots returns the number of local variable slots the descriptor's
// parameters occupy, honoring the long/double double-width rule.
func (m *MethodDescriptor) ArgumentSlots() int {
	n := 0
	for _, t := range m.ParameterTypes {
		if IsWide(t) {
			n += 2
		} else {
			n++
		}
	}
	return n
}
