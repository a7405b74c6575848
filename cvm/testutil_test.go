package cvm

import (
	"bytes"
	"testing"

	"github.com/andreabergia/rjvm/classfile"
	"github.com/andreabergia/rjvm/classpath"
)

// newTestEngine builds an Engine with a tiny heap and an empty classpath
// (only the synthetic bootstrap classes resolve), backed by an
// in-memory output buffer for assertions against tempPrint. Grounded on
// the same construct-the-graph-directly approach
// daimatz-gojvm__instructions_test.go uses to avoid depending on javac.
func newTestEngine(t *testing.T, heapBytes int) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e := NewEngine(EngineOptions{
		ClassPath: classpath.New(),
		HeapBytes: heapBytes,
		Output:    &out,
	})
	return e, &out
}

// buildTestClass constructs a single-method *Class directly, bypassing
// classfile.Parse entirely, the way bootstrap.go seeds java.lang.* and the
// way spec-scenario tests build engine-level fixtures.
func buildTestClass(t *testing.T, name string, super *Class, m testMethod) *Class {
	t.Helper()
	parsed, err := classfile.ParseMethodDescriptor(m.descriptor)
	if err != nil {
		t.Fatalf("parsing descriptor %s: %v", m.descriptor, err)
	}

	c := &Class{Name: name, Super: super}
	layout := &fieldLayout{index: make(map[string]int)}
	if super != nil {
		layout.slots = append(layout.slots, super.fieldLayout.slots...)
		for k, v := range super.fieldLayout.index {
			layout.index[k] = v
		}
	}
	c.fieldLayout = layout
	c.staticIndex = make(map[string]int)

	accessFlags := classfile.MethodPublic
	if m.static {
		accessFlags |= classfile.MethodStatic
	}
	raw := &classfile.Method{
		AccessFlags: accessFlags,
		Name:        m.name,
		Descriptor:  m.descriptor,
		Parsed:      parsed,
		Code: &classfile.Code{
			MaxStack:       m.maxStack,
			MaxLocals:      m.maxLocals,
			Bytes:          m.code,
			ExceptionTable: m.exceptionTable,
		},
	}
	method := &Method{Owner: c, Raw: raw, Name: m.name, Descriptor: m.descriptor, Parsed: parsed}
	c.methods = map[string]*Method{method.signature(): method}
	buildVTable(c)
	c.setState(StateInitialized)
	return c
}

type testMethod struct {
	name           string
	descriptor     string
	static         bool
	maxStack       uint16
	maxLocals      uint16
	code           []byte
	exceptionTable []classfile.ExceptionTableEntry
}
